package adapter

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cwbudde/logregbench/internal/device"
	"github.com/cwbudde/logregbench/internal/opt"
)

// BatchSize is a mini-batch size, or FullBatch for the whole dataset.
type BatchSize int

// FullBatch is the sentinel batch size meaning "use every sample".
const FullBatch BatchSize = -1

// ErrInvalidBatchSize is returned when a batch size does not parse.
var ErrInvalidBatchSize = errors.New("invalid batch size")

// ParseBatchSize accepts a positive integer or "full".
func ParseBatchSize(s string) (BatchSize, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "full" {
		return FullBatch, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidBatchSize, s)
	}
	return BatchSize(n), nil
}

// IsFull reports whether b is the full-batch sentinel.
func (b BatchSize) IsFull() bool { return b == FullBatch }

func (b BatchSize) String() string {
	if b.IsFull() {
		return "full"
	}
	return strconv.Itoa(int(b))
}

// MarshalText encodes the batch size as "full" or a decimal integer.
func (b BatchSize) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (b *BatchSize) UnmarshalText(text []byte) error {
	v, err := ParseBatchSize(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// Config is one point of the benchmark's option grid. It decides which
// runner executes and whether the combination is meaningful at all.
type Config struct {
	Solver        opt.Kind          `json:"solver" yaml:"solver"`
	LineSearch    bool              `json:"lineSearch" yaml:"line_search"`
	Stochastic    bool              `json:"stochastic" yaml:"stochastic"`
	BatchSize     BatchSize         `json:"batchSize" yaml:"batch_size"`
	Normalization opt.Normalization `json:"normalization" yaml:"normalization"`
	Momentum      float64           `json:"momentum" yaml:"momentum"`
	Device        device.Device     `json:"device" yaml:"device"`
}

// Name renders the config the way benchmark reports label solvers, e.g.
// pgd[line_search=false,stochastic=true,batch_size=32,normalization=L2,momentum=0.9,device=cpu].
func (c Config) Name() string {
	return fmt.Sprintf("%s[line_search=%t,stochastic=%t,batch_size=%s,normalization=%s,momentum=%s,device=%s]",
		c.Solver,
		c.LineSearch,
		c.Stochastic,
		c.BatchSize,
		c.Normalization,
		strconv.FormatFloat(c.Momentum, 'g', -1, 64),
		c.Device,
	)
}
