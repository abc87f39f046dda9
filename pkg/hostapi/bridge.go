package hostapi

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tramsim/consist/internal/dispatcher"
	"github.com/tramsim/consist/internal/util"
)

// Built-in commands answered without the dispatcher.
const (
	CommandVersion   = ":VERSION:"
	CommandTimestamp = ":TIMESTAMP:"
)

// Bridge turns host calls into dispatcher events and formats the replies as
// host array literals: ["ok"], ["ok", result] or ["error", "message"].
type Bridge struct {
	d       *dispatcher.Dispatcher
	version string
	now     func() time.Time
}

// NewBridge creates a bridge over d.
func NewBridge(d *dispatcher.Dispatcher, version string) *Bridge {
	return &Bridge{d: d, version: version, now: time.Now}
}

// Call handles the single-string form "command|arg|arg".
func (b *Bridge) Call(input string) string {
	parts := strings.Split(input, "|")
	return b.CallArgs(parts[0], parts[1:])
}

// CallArgs handles a command with its argument list.
func (b *Bridge) CallArgs(command string, args []string) string {
	switch command {
	case CommandVersion:
		return formatResponse(b.version, nil)
	case CommandTimestamp:
		return formatResponse(strconv.FormatInt(b.now().UTC().UnixNano(), 10), nil)
	}

	if b.d == nil || !b.d.HasHandler(command) {
		return formatResponse(nil, fmt.Errorf("no handler registered for %s", command))
	}
	result, err := b.d.Dispatch(dispatcher.Event{
		Command:   command,
		Args:      args,
		Timestamp: b.now(),
	})
	return formatResponse(result, err)
}

// formatResponse renders strings verbatim with host quote escaping and
// everything else as JSON.
func formatResponse(result any, err error) string {
	if err != nil {
		return fmt.Sprintf(`["error", "%s"]`, util.EscapeQuotes(err.Error()))
	}
	switch v := result.(type) {
	case nil:
		return `["ok"]`
	case string:
		return fmt.Sprintf(`["ok", "%s"]`, util.EscapeQuotes(v))
	}
	b, jerr := json.Marshal(result)
	if jerr != nil {
		return formatResponse(nil, fmt.Errorf("failed to encode result: %w", jerr))
	}
	return fmt.Sprintf(`["ok", %s]`, b)
}
