package status

import (
	"fmt"
	"io"
	"sync"

	"github.com/phuslu/log"
)

// Explanations collects the reasons why units were rebuilt (-d explain).
// A nil *Explanations records nothing.
type Explanations struct {
	logger_ log.Logger
	mu_     sync.Mutex
	map_    map[string][]string
}

func NewExplanations(w io.Writer, colorOutput bool) *Explanations {
	ret := Explanations{map_: make(map[string][]string)}
	ret.logger_ = log.Logger{
		Level:  log.InfoLevel,
		Writer: &log.ConsoleWriter{Writer: w, ColorOutput: colorOutput},
	}
	return &ret
}

func (this *Explanations) Record(item string, format string, args ...interface{}) {
	if this == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	this.mu_.Lock()
	this.map_[item] = append(this.map_[item], msg)
	this.mu_.Unlock()
	this.logger_.Info().Str("item", item).Msg(msg)
}

// / Lookup the explanations recorded for |item|.
func (this *Explanations) Lookup(item string) []string {
	if this == nil {
		return nil
	}
	this.mu_.Lock()
	defer this.mu_.Unlock()
	return append([]string(nil), this.map_[item]...)
}
