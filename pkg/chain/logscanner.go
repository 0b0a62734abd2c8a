package chain

import (
	"context"
	"fmt"
	"strings"
)

const (
	initialWindow = 1000
	maxWindow     = 100_000
	minWindow     = 10

	// maxConsecutiveFailures bounds retries at the floor window before Scan
	// gives up on the current chunk and surfaces the error.
	maxConsecutiveFailures = 5
)

// LogScanner walks a block range in chunks sized adaptively: it doubles the
// window on a successful fetch (up to maxWindow) and halves it on failure
// (down to minWindow), since RPC providers vary in how large a single
// eth_getLogs range they will serve. A provider that explicitly reports a
// hard cap at or below minWindow locks the window there for the rest of the
// scan rather than continuing to probe.
type LogScanner struct {
	gateway Gateway
	window  uint64
	locked  bool
}

// NewLogScanner returns a scanner starting at the initial 1000-block window.
func NewLogScanner(gateway Gateway) *LogScanner {
	return &LogScanner{gateway: gateway, window: initialWindow}
}

// Scan fetches all logs for address/topic between fromBlock and toBlock
// inclusive, chunking the range per the adaptive window.
func (s *LogScanner) Scan(ctx context.Context, filter LogFilter) ([]Log, error) {
	var all []Log
	from := filter.FromBlock
	failuresAtFloor := 0

	for from <= filter.ToBlock {
		to := from + s.window - 1
		if to > filter.ToBlock {
			to = filter.ToBlock
		}

		logs, err := s.gateway.FetchLogs(ctx, LogFilter{
			Address:   filter.Address,
			Topic:     filter.Topic,
			FromBlock: from,
			ToBlock:   to,
		})
		if err != nil {
			if cap, ok := providerDeclaredCap(err); ok && cap <= minWindow {
				s.window = cap
				s.locked = true
			} else {
				s.shrink()
			}
			if s.window == minWindow {
				failuresAtFloor++
				if failuresAtFloor >= maxConsecutiveFailures {
					return all, fmt.Errorf("log scan stuck at floor window [%d, %d]: %w", from, to, err)
				}
			}
			continue
		}

		failuresAtFloor = 0
		all = append(all, logs...)
		from = to + 1
		s.grow()
	}

	return all, nil
}

func (s *LogScanner) grow() {
	if s.locked {
		return
	}
	s.window *= 2
	if s.window > maxWindow {
		s.window = maxWindow
	}
}

func (s *LogScanner) shrink() {
	if s.locked {
		return
	}
	s.window /= 2
	if s.window < minWindow {
		s.window = minWindow
	}
}

// providerDeclaredCap looks for an RPC provider's explicit range-limit
// message (e.g. "block range too large, maximum is 10") and extracts the
// declared cap.
func providerDeclaredCap(err error) (uint64, bool) {
	msg := strings.ToLower(err.Error())
	idx := strings.LastIndex(msg, "maximum is")
	if idx < 0 {
		return 0, false
	}
	var cap uint64
	if _, scanErr := fmt.Sscanf(msg[idx:], "maximum is %d", &cap); scanErr == nil && cap > 0 {
		return cap, true
	}
	return 0, false
}
