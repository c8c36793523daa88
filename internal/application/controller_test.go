package application_test

import (
	"context"
	"errors"
	"testing"

	"wear-voice/internal/application"
	"wear-voice/internal/domain"
)

type controllerFixture struct {
	output      *fakeOutput
	recognizer  *fakeRecognizer
	permissions *fakePermissions
	notifier    *recordingNotifier
	controller  *application.Controller
}

func newControllerFixture(t *testing.T) *controllerFixture {
	t.Helper()
	f := &controllerFixture{
		output:      &fakeOutput{available: map[domain.OutputKind]bool{domain.OutputBuiltinSpeaker: true}},
		recognizer:  &fakeRecognizer{},
		permissions: &fakePermissions{granted: true},
		notifier:    newRecordingNotifier(),
	}
	content := application.Content{
		News:    domain.DefaultNews(),
		Help:    domain.DefaultHelp,
		Message: domain.DefaultMessage(),
	}
	f.controller = application.NewController(
		f.output,
		f.recognizer,
		f.permissions,
		application.NewKeywordParser("notícias", "parar"),
		f.notifier,
		content,
		"pt-BR",
		discardLogger(),
	)
	return f
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestController_NewsCommandSpeaksOneNewsItem(t *testing.T) {
	f := newControllerFixture(t)

	cmd, err := f.controller.HandleVoiceCommand(context.Background(), "Quero saber as notícias de hoje")
	if err != nil {
		t.Fatalf("HandleVoiceCommand: %v", err)
	}
	if cmd.Action != domain.ActionNews {
		t.Errorf("action: got %s, want news", cmd.Action)
	}
	if len(f.output.spoken) != 1 {
		t.Fatalf("spoken: got %d utterances, want 1", len(f.output.spoken))
	}
	if !contains(domain.DefaultNews(), f.output.spoken[0]) {
		t.Errorf("spoken text is not a news item: %q", f.output.spoken[0])
	}
}

func TestController_NewsSelectionUsesPicker(t *testing.T) {
	news := domain.DefaultNews()

	for i := range news {
		f := newControllerFixture(t)
		var gotN int
		f.controller.WithPicker(func(n int) int {
			gotN = n
			return i
		})

		if _, err := f.controller.HandleVoiceCommand(context.Background(), "NOTÍCIAS"); err != nil {
			t.Fatalf("HandleVoiceCommand: %v", err)
		}
		if gotN != len(news) {
			t.Errorf("picker range: got %d, want %d", gotN, len(news))
		}
		if f.output.spoken[0] != news[i] {
			t.Errorf("pick %d: got %q, want %q", i, f.output.spoken[0], news[i])
		}
	}
}

func TestController_DispatchOrder(t *testing.T) {
	tests := []struct {
		name       string
		transcript string
		want       domain.Action
	}{
		{"news lowercase", "notícias", domain.ActionNews},
		{"news mixed case", "Me conte as NoTíCiAs", domain.ActionNews},
		{"stop", "pode PARAR agora", domain.ActionStop},
		{"both keywords news wins", "parar as notícias", domain.ActionNews},
		{"unknown", "que horas são", domain.ActionUnknown},
		{"empty", "", domain.ActionUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newControllerFixture(t)

			cmd, err := f.controller.HandleVoiceCommand(context.Background(), tt.transcript)
			if cmd == nil {
				t.Fatalf("nil command, err %v", err)
			}
			if cmd.Action != tt.want {
				t.Errorf("action: got %s, want %s", cmd.Action, tt.want)
			}

			switch tt.want {
			case domain.ActionNews:
				if len(f.output.spoken) != 1 || f.output.stops != 0 {
					t.Errorf("news: spoken %d, stops %d", len(f.output.spoken), f.output.stops)
				}
			case domain.ActionStop:
				if f.output.stops != 1 || len(f.output.spoken) != 0 {
					t.Errorf("stop: spoken %d, stops %d", len(f.output.spoken), f.output.stops)
				}
			case domain.ActionUnknown:
				if !errors.Is(err, domain.ErrUnrecognizedCommand) {
					t.Errorf("err: got %v, want ErrUnrecognizedCommand", err)
				}
				if !contains(f.notifier.Messages(), "Comando não reconhecido") {
					t.Errorf("missing notice, got %v", f.notifier.Messages())
				}
			}
		})
	}
}

func TestController_NewsWithoutOutput(t *testing.T) {
	f := newControllerFixture(t)
	f.output.available = nil

	_, err := f.controller.HandleVoiceCommand(context.Background(), "notícias")
	if !errors.Is(err, domain.ErrOutputUnavailable) {
		t.Fatalf("err: got %v, want ErrOutputUnavailable", err)
	}
	if len(f.output.spoken) != 0 {
		t.Error("nothing should be spoken without an output")
	}
	if !contains(f.notifier.Messages(), "Dispositivo de áudio não disponível.") {
		t.Errorf("missing notice, got %v", f.notifier.Messages())
	}
}

func TestController_ButtonsBypassRecognition(t *testing.T) {
	f := newControllerFixture(t)
	ctx := context.Background()

	if err := f.controller.ReadMessage(ctx); err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if err := f.controller.Help(ctx); err != nil {
		t.Fatalf("Help: %v", err)
	}

	want := []string{
		"Você recebeu uma nova mensagem de João Silva em 15 de outubro de 2024 às 14:30: 'Olá, como você está?'",
		domain.DefaultHelp,
	}
	if len(f.output.spoken) != 2 || f.output.spoken[0] != want[0] || f.output.spoken[1] != want[1] {
		t.Errorf("spoken: got %q, want %q", f.output.spoken, want)
	}
	if f.recognizer.Sessions() != 0 {
		t.Error("buttons must not start recognition")
	}
}

func TestController_EngineNotReadyIsSurfaced(t *testing.T) {
	f := newControllerFixture(t)
	f.output.speakErr = domain.ErrEngineNotReady

	err := f.controller.Help(context.Background())
	if !errors.Is(err, domain.ErrEngineNotReady) {
		t.Fatalf("err: got %v", err)
	}
	if !contains(f.notifier.Messages(), "Mecanismo de voz indisponível.") {
		t.Errorf("missing notice, got %v", f.notifier.Messages())
	}
}

func TestController_RecognitionResultDispatches(t *testing.T) {
	f := newControllerFixture(t)

	if err := f.controller.StartVoiceCommand(context.Background()); err != nil {
		t.Fatalf("StartVoiceCommand: %v", err)
	}
	if f.controller.State() != domain.StateListening {
		t.Fatalf("state: got %s, want listening", f.controller.State())
	}
	req := f.recognizer.requests[0]
	if req.Language != "pt-BR" || req.Model != application.ModelFreeForm {
		t.Errorf("request: got %+v", req)
	}

	l := f.recognizer.last()
	l.OnReadyForSpeech()
	l.OnBeginningOfSpeech()
	l.OnRmsChanged(-20)
	l.OnPartialResults([]string{"parar"})
	l.OnEndOfSpeech()
	l.OnResults([]string{"parar", "notícias"})

	if f.controller.State() != domain.StateIdle {
		t.Errorf("state: got %s, want idle", f.controller.State())
	}
	if f.output.stops != 1 || len(f.output.spoken) != 0 {
		t.Errorf("only the first candidate should run: stops %d, spoken %d", f.output.stops, len(f.output.spoken))
	}
	if !contains(f.notifier.Messages(), "Pronto para ouvir") {
		t.Errorf("missing ready notice, got %v", f.notifier.Messages())
	}

	// A late result from the finished session is ignored.
	l.OnResults([]string{"notícias"})
	if len(f.output.spoken) != 0 {
		t.Error("stale session result was dispatched")
	}
}

func TestController_RecognitionErrorReturnsToIdle(t *testing.T) {
	f := newControllerFixture(t)

	if err := f.controller.StartVoiceCommand(context.Background()); err != nil {
		t.Fatalf("StartVoiceCommand: %v", err)
	}
	f.recognizer.last().OnError(domain.RecognitionNoMatch)

	if f.controller.State() != domain.StateIdle {
		t.Errorf("state: got %s, want idle", f.controller.State())
	}
	if !contains(f.notifier.Messages(), "Erro de reconhecimento: 7") {
		t.Errorf("missing error notice, got %v", f.notifier.Messages())
	}

	if err := f.controller.StartVoiceCommand(context.Background()); err != nil {
		t.Fatalf("second StartVoiceCommand: %v", err)
	}
	if f.recognizer.Sessions() != 2 {
		t.Errorf("sessions: got %d, want 2", f.recognizer.Sessions())
	}
}

func TestController_BusyWhileListening(t *testing.T) {
	f := newControllerFixture(t)
	ctx := context.Background()

	if err := f.controller.StartVoiceCommand(ctx); err != nil {
		t.Fatalf("StartVoiceCommand: %v", err)
	}
	if err := f.controller.StartVoiceCommand(ctx); !errors.Is(err, domain.ErrRecognizerBusy) {
		t.Errorf("second start: got %v, want ErrRecognizerBusy", err)
	}
	if f.recognizer.Sessions() != 1 {
		t.Errorf("sessions: got %d, want 1", f.recognizer.Sessions())
	}
}

func TestController_PermissionDeniedNeverStartsSession(t *testing.T) {
	f := newControllerFixture(t)
	f.permissions.granted = false

	if err := f.controller.StartVoiceCommand(context.Background()); err != nil {
		t.Fatalf("StartVoiceCommand: %v", err)
	}
	if f.permissions.requests != 1 {
		t.Fatalf("permission requests: got %d, want 1", f.permissions.requests)
	}
	if f.recognizer.Sessions() != 0 {
		t.Fatal("session started before permission was granted")
	}

	f.permissions.answer(false)

	if f.recognizer.Sessions() != 0 {
		t.Error("denied permission started a session")
	}
	if f.controller.State() != domain.StateIdle {
		t.Errorf("state: got %s, want idle", f.controller.State())
	}
	if !contains(f.notifier.Messages(), "Permissão para uso do microfone negada") {
		t.Errorf("missing denial notice, got %v", f.notifier.Messages())
	}
}

func TestController_ImmediateDenialIsReturned(t *testing.T) {
	f := newControllerFixture(t)
	f.permissions.granted = false
	f.permissions.immediate = true

	err := f.controller.StartVoiceCommand(context.Background())
	if !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("err: got %v, want ErrPermissionDenied", err)
	}
	if f.recognizer.Sessions() != 0 {
		t.Error("denied permission started a session")
	}
	if f.controller.State() != domain.StateIdle {
		t.Errorf("state: got %s, want idle", f.controller.State())
	}
}

func TestController_PermissionGrantedStartsDeferredSession(t *testing.T) {
	f := newControllerFixture(t)
	f.permissions.granted = false

	if err := f.controller.StartVoiceCommand(context.Background()); err != nil {
		t.Fatalf("StartVoiceCommand: %v", err)
	}
	f.permissions.answer(true)

	if f.recognizer.Sessions() != 1 {
		t.Errorf("sessions: got %d, want 1", f.recognizer.Sessions())
	}
}

func TestController_RecognizerStartFailure(t *testing.T) {
	f := newControllerFixture(t)
	f.recognizer.err = &domain.RecognitionError{Code: domain.RecognitionBusy}

	err := f.controller.StartVoiceCommand(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if f.controller.State() != domain.StateIdle {
		t.Errorf("state: got %s, want idle", f.controller.State())
	}
	if !contains(f.notifier.Messages(), "Erro de reconhecimento: 8") {
		t.Errorf("missing error notice, got %v", f.notifier.Messages())
	}
}

func TestController_BluetoothConnectedNotice(t *testing.T) {
	f := newControllerFixture(t)

	f.controller.OnOutputAdded(domain.OutputHDMI)
	f.controller.OnOutputAdded(domain.OutputBluetoothA2DP)

	msgs := f.notifier.Messages()
	if len(msgs) != 1 || msgs[0] != "Fone de ouvido Bluetooth conectado!" {
		t.Errorf("notices: got %v", msgs)
	}
}

func TestController_CloseRejectsNewSessions(t *testing.T) {
	f := newControllerFixture(t)

	f.controller.Close()
	if err := f.controller.StartVoiceCommand(context.Background()); err == nil {
		t.Error("closed controller started a session")
	}
}
