package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/apex/log"
)

// CustomHandler prints one compact line per entry: a timestamp, the level
// initial, the message, then fields as key=value in name order.
type CustomHandler struct {
	mu     sync.Mutex
	Writer io.Writer
}

// InitLogger installs CustomHandler on stderr and sets the level from
// LSBIBLE_LOG. Unknown levels fall back to ERROR.
func InitLogger() {
	level := os.Getenv("LSBIBLE_LOG")
	if level == "" {
		level = "ERROR"
	}

	log.SetHandler(&CustomHandler{Writer: os.Stderr})

	parsed, err := log.ParseLevel(level)
	if err != nil {
		parsed = log.ErrorLevel
	}
	log.SetLevel(parsed)
}

func (h *CustomHandler) HandleLog(e *log.Entry) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %.1s %s", e.Timestamp.Format("2006-01-02 15:04:05.000"), strings.ToUpper(e.Level.String()), e.Message)
	for _, name := range e.Fields.Names() {
		fmt.Fprintf(&b, " %s=%v", name, e.Fields.Get(name))
	}
	b.WriteByte('\n')

	w := h.Writer
	if w == nil {
		w = os.Stderr
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(w, b.String())
	return err
}
