package sandbox

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/dyluth/playbox/internal/program"
)

// MessageTypeCallCode is the only request type the runtime accepts.
const MessageTypeCallCode = "callCode"

// CallbackFinishBoot is both the end-of-boot callback token attached to boot requests
// and the callback value the runtime replies with once boot is complete.
const CallbackFinishBoot = "finishBoot"

// Callbacks names host callbacks the runtime should invoke.
type Callbacks struct {
	EndCallback string `json:"endCallback,omitempty"`
}

// Viewport is the host surface size the runtime lays itself out against.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Request is one evaluation snapshot sent across the isolation boundary.
type Request struct {
	Type                   string              `json:"type"`
	Game                   string              `json:"game"`
	Sprites                map[string][]string `json:"sprites,omitempty"`
	Map                    [][]int             `json:"map,omitempty"`
	Phrases                program.Table       `json:"phrases,omitempty"`
	Chains                 program.Table       `json:"chains,omitempty"`
	Songs                  program.Table       `json:"songs,omitempty"`
	Sound                  map[string]float64  `json:"sound,omitempty"`
	Run                    bool                `json:"run"`
	Callbacks              Callbacks           `json:"callbacks"`
	IsNew                  bool                `json:"isNew"`
	IsDoneFetching         bool                `json:"isDoneFetching"`
	UseFrameBufferRenderer bool                `json:"useFrameBufferRenderer"`
	Viewport               Viewport            `json:"viewport"`
}

// NewRequest builds a callCode request from a program. The source is assembled here;
// asset tables are carried as-is.
func NewRequest(p program.Program) Request {
	return Request{
		Type:    MessageTypeCallCode,
		Game:    program.Assemble(p),
		Sprites: p.Sprites,
		Map:     p.Map,
		Phrases: p.Phrases,
		Chains:  p.Chains,
		Songs:   p.Songs,
		Sound:   p.Sound,
	}
}

// ErrorEntry is a single lint or runtime error.
type ErrorEntry struct {
	Kind    string `json:"type"`
	Message string `json:"message"`
}

// Shortcut is a user intent raised inside the sandbox and relayed to the host.
type Shortcut string

const (
	ShortcutSave     Shortcut = "save"
	ShortcutPrevious Shortcut = "previous"
	ShortcutNext     Shortcut = "next"
)

// LogValue is a logged value whose presence is tracked separately from its content:
// an explicit null is a value, a missing field is not.
type LogValue struct {
	Present bool
	Value   json.RawMessage
}

// NewLogValue wraps an already-encoded JSON value.
func NewLogValue(raw json.RawMessage) LogValue {
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	return LogValue{Present: true, Value: append(json.RawMessage(nil), raw...)}
}

// String renders the value as compact JSON, or "" when absent.
func (l LogValue) String() string {
	if !l.Present {
		return ""
	}
	return string(l.Value)
}

// Reply is one message from the runtime. Every field is optional and independent.
type Reply struct {
	Callback string
	Height   *int
	Errors   []ErrorEntry // nil when absent, empty (non-nil) to clear
	Log      LogValue
	Shortcut Shortcut
}

// HasErrors reports whether the reply carried an errors field.
func (r Reply) HasErrors() bool {
	return r.Errors != nil
}

// MarshalJSON writes only the fields that are present.
func (r Reply) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, 5)
	if r.Callback != "" {
		m["callback"] = r.Callback
	}
	if r.Height != nil {
		m["height"] = *r.Height
	}
	if r.Errors != nil {
		m["errors"] = r.Errors
	}
	if r.Log.Present {
		m["log"] = json.RawMessage(r.Log.String())
	}
	if r.Shortcut != "" {
		m["shortcut"] = r.Shortcut
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes field by field so that presence survives decoding.
func (r *Reply) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*r = Reply{}

	if raw, ok := fields["callback"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &r.Callback); err != nil {
			return fmt.Errorf("invalid callback: %w", err)
		}
	}

	if raw, ok := fields["height"]; ok && !isNull(raw) {
		var h float64
		if err := json.Unmarshal(raw, &h); err != nil {
			return fmt.Errorf("invalid height: %w", err)
		}
		height := int(math.Round(math.Max(0, math.Min(h, maxSurface))))
		r.Height = &height
	}

	if raw, ok := fields["errors"]; ok && !isNull(raw) {
		errs := []ErrorEntry{}
		if err := json.Unmarshal(raw, &errs); err != nil {
			return fmt.Errorf("invalid errors: %w", err)
		}
		r.Errors = errs
	}

	if raw, ok := fields["log"]; ok {
		r.Log = NewLogValue(raw)
	}

	if raw, ok := fields["shortcut"]; ok && !isNull(raw) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("invalid shortcut: %w", err)
		}
		r.Shortcut = Shortcut(s)
	}

	return nil
}

func isNull(raw json.RawMessage) bool {
	return string(raw) == "null"
}
