package pulse

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"regexp"
	"strings"
	"sync"

	"wear-voice/internal/domain"
)

// Runner runs pactl with args and returns its stdout.
type Runner func(ctx context.Context, args ...string) ([]byte, error)

// Client reads and changes PulseAudio/PipeWire sink state through pactl.
type Client struct {
	binary string
	run    Runner
	logger *slog.Logger

	lookOnce sync.Once
	present  bool
}

func NewClient(binary string, logger *slog.Logger) *Client {
	if binary == "" {
		binary = "pactl"
	}
	c := &Client{binary: binary, logger: logger}
	c.run = c.execRun
	return c
}

// NewClientWithRunner is used by tests to replace pactl.
func NewClientWithRunner(run Runner, logger *slog.Logger) *Client {
	c := &Client{binary: "pactl", run: run, logger: logger}
	c.lookOnce.Do(func() { c.present = true })
	return c
}

func (c *Client) execRun(ctx context.Context, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, c.binary, args...).Output()
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", c.binary, strings.Join(args, " "), err)
	}
	return out, nil
}

func (c *Client) HasAudioOutput() bool {
	c.lookOnce.Do(func() {
		_, err := exec.LookPath(c.binary)
		c.present = err == nil
		if !c.present {
			c.logger.Warn("pactl not found, no audio output available", "binary", c.binary)
		}
	})
	return c.present
}

func (c *Client) Outputs(ctx context.Context) ([]domain.OutputDevice, error) {
	out, err := c.run(ctx, "list", "sinks")
	if err != nil {
		return nil, fmt.Errorf("listing sinks: %w", err)
	}
	return ParseSinks(string(out)), nil
}

// SetMode points the default sink at the device that serves mode.
func (c *Client) SetMode(ctx context.Context, mode domain.RoutingMode) error {
	var want domain.OutputKind
	switch mode {
	case domain.ModeNormal:
		want = domain.OutputBuiltinSpeaker
	case domain.ModeCommunication:
		want = domain.OutputBluetoothSCO
	default:
		return fmt.Errorf("unknown routing mode: %s", mode)
	}

	devices, err := c.Outputs(ctx)
	if err != nil {
		return err
	}

	for _, d := range devices {
		if d.Kind != want {
			continue
		}
		if _, err := c.run(ctx, "set-default-sink", d.Name); err != nil {
			return fmt.Errorf("setting default sink: %w", err)
		}
		c.logger.Info("routing mode changed", "mode", mode, "sink", d.Name)
		return nil
	}

	return fmt.Errorf("%w: no %s sink for mode %s", domain.ErrOutputUnavailable, want, mode)
}

var propertyRe = regexp.MustCompile(`^([a-z0-9_.]+)\s*=\s*"(.*)"$`)

// ParseSinks parses the output of `pactl list sinks`.
func ParseSinks(text string) []domain.OutputDevice {
	parts := strings.Split(text, "Sink #")
	if len(parts) <= 1 {
		return nil
	}

	var res []domain.OutputDevice

	for _, block := range parts[1:] {
		newline := strings.IndexByte(block, '\n')
		if newline <= 0 {
			continue
		}

		d := domain.OutputDevice{ID: strings.TrimSpace(block[:newline])}
		props := make(map[string]string)

		for _, line := range strings.Split(block[newline+1:], "\n") {
			line = strings.TrimSpace(line)

			switch {
			case strings.HasPrefix(line, "Name:") && d.Name == "":
				d.Name = strings.TrimSpace(strings.TrimPrefix(line, "Name:"))
			case strings.HasPrefix(line, "Description:") && d.Description == "":
				d.Description = strings.TrimSpace(strings.TrimPrefix(line, "Description:"))
			default:
				if m := propertyRe.FindStringSubmatch(line); m != nil {
					if _, seen := props[m[1]]; !seen {
						props[m[1]] = m[2]
					}
				}
			}
		}

		if d.Name == "" {
			continue
		}
		d.Kind = classify(d.Name, props)
		res = append(res, d)
	}

	return res
}

func classify(name string, props map[string]string) domain.OutputKind {
	lname := strings.ToLower(name)
	bus := props["device.bus"]
	formFactor := props["device.form_factor"]
	profile := strings.ToLower(props["api.bluez5.profile"] + " " + props["bluetooth.protocol"])

	if strings.HasPrefix(lname, "bluez_") || bus == "bluetooth" {
		if strings.Contains(lname, "headset_head_unit") || strings.Contains(profile, "hsp") ||
			strings.Contains(profile, "hfp") || strings.Contains(profile, "headset-head-unit") {
			return domain.OutputBluetoothSCO
		}
		return domain.OutputBluetoothA2DP
	}

	if strings.Contains(lname, "hdmi") || formFactor == "tv" {
		return domain.OutputHDMI
	}

	switch formFactor {
	case "headphone", "headset":
		return domain.OutputWiredHeadset
	case "internal", "speaker":
		return domain.OutputBuiltinSpeaker
	}

	if strings.Contains(lname, "speaker") || strings.Contains(lname, "analog-stereo") || strings.Contains(lname, "analog_stereo") {
		return domain.OutputBuiltinSpeaker
	}

	return domain.OutputUnknown
}

// sinkEventRe matches `pactl subscribe` lines such as: Event 'new' on sink #58
var sinkEventRe = regexp.MustCompile(`^Event '(new|remove|change)' on sink #(\d+)`)

func isSinkTopologyEvent(line string) bool {
	m := sinkEventRe.FindStringSubmatch(strings.TrimSpace(line))
	return m != nil && m[1] != "change"
}

// scanEvents calls fn for every sink new/remove line in r.
func scanEvents(r io.Reader, fn func()) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if isSinkTopologyEvent(sc.Text()) {
			fn()
		}
	}
	return sc.Err()
}
