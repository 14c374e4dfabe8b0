package lockfree

import (
	"bufio"
	"errors"
	"io"
	"os"

	"github.com/orizon-lang/memscope/internal/trackerr"
)

// ReadEventLog reads every complete event from a thread's .bin file. A
// missing file is treated as zero data (returns nil, nil); a truncated
// final record stops the read cleanly rather than erroring — the
// aggregator (§4.I) must tolerate both, unlike the stricter binary
// container reader in internal/binio which validates against a declared
// count.
func ReadEventLog(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, trackerr.Wrap(trackerr.IoError, err, "opening event log %s", path)
	}

	defer func() { _ = f.Close() }()

	r := bufio.NewReader(f)

	var events []Event

	for {
		ev, err := readEvent(r)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}

			return events, trackerr.Wrap(trackerr.IoError, err, "reading event log %s", path)
		}

		events = append(events, ev)
	}

	return events, nil
}

// ReadHistogram reads a thread's .freq companion file. A missing file
// reports ok=false with no error (zero data, e.g. FrequencyFull mode never
// wrote one).
func ReadHistogram(path string) (hist Histogram, ok bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Histogram{}, false, nil
		}

		return Histogram{}, false, trackerr.Wrap(trackerr.IoError, err, "opening frequency log %s", path)
	}

	defer func() { _ = f.Close() }()

	h, err := readHistogram(bufio.NewReader(f))
	if err != nil {
		return Histogram{}, false, trackerr.Wrap(trackerr.CorruptedData, err, "reading frequency log %s", path)
	}

	return h, true, nil
}
