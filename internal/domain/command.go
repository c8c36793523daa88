package domain

import "fmt"

type Action string

const (
	ActionNews    Action = "news"
	ActionStop    Action = "stop"
	ActionUnknown Action = "unknown"
)

// TextCommandPrefix is the marker used to indicate text commands (vs audio)
const TextCommandPrefix = "__TEXT__:"

type Command struct {
	Action  Action
	RawText string
}

type RecognitionState string

const (
	StateIdle      RecognitionState = "idle"
	StateListening RecognitionState = "listening"
)

type Permission string

const PermissionMicrophone Permission = "microphone"

// Message is the canned message read out by the read-message button.
type Message struct {
	Sender string `yaml:"sender"`
	Body   string `yaml:"body"`
	Date   string `yaml:"date"`
	Time   string `yaml:"time"`
}

func (m Message) Sentence() string {
	return fmt.Sprintf("Você recebeu uma nova mensagem de %s em %s às %s: '%s'", m.Sender, m.Date, m.Time, m.Body)
}

func DefaultMessage() Message {
	return Message{
		Sender: "João Silva",
		Body:   "Olá, como você está?",
		Date:   "15 de outubro de 2024",
		Time:   "14:30",
	}
}

func DefaultNews() []string {
	return []string{
		"O Brasil se prepara para as eleições de 2024 com novas propostas de candidatos.",
		"A tecnologia 5G começa a ser implementada em mais cidades brasileiras.",
		"Estudos recentes mostram que a vacinação continua a reduzir a transmissão do COVID-19.",
		"A economia brasileira cresce 2% no último trimestre, superando as expectativas.",
		"O governo anuncia novos investimentos em energia renovável para 2025.",
	}
}

const DefaultHelp = "Você pode usar comandos de voz como 'notícias' para ouvir as últimas notícias."
