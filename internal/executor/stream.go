package executor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"

	"github.com/clawinfra/clawroute/internal/types"
)

// PumpStats is what the pump observed while copying a stream.
type PumpStats struct {
	InputTokens  int
	OutputTokens int
	ChunkCount   int
	HadToolCalls bool
	UsageSeen    bool
	BytesWritten int64
	ClientGone   bool
}

const pumpBufSize = 32 * 1024

// Pump copies upstream bytes to the client unmodified, flushing after every
// read so the slowest party governs throughput. In parallel it keeps a
// newline-split view of the bytes and best-effort parses each `data:` frame
// for usage and tool-call markers; parse failures are silent and never
// affect the forwarded bytes.
//
// A client write failure stops the upstream read immediately (the caller
// closes the upstream body, aborting the transfer). An upstream read error
// is papered over with a terminal [DONE] frame so clients see a clean SSE
// end.
func Pump(w http.ResponseWriter, upstream io.Reader, logger *slog.Logger) PumpStats {
	flusher, _ := w.(http.Flusher)
	var stats PumpStats
	var lineBuf []byte
	buf := make([]byte, pumpBufSize)

	for {
		n, err := upstream.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				stats.ClientGone = true
				logger.Debug("client disconnected mid-stream", "error", werr)
				break
			}
			if flusher != nil {
				flusher.Flush()
			}
			stats.BytesWritten += int64(n)

			lineBuf = append(lineBuf, buf[:n]...)
			for {
				i := bytes.IndexByte(lineBuf, '\n')
				if i < 0 {
					break
				}
				stats.observe(lineBuf[:i])
				lineBuf = lineBuf[i+1:]
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Warn("upstream stream read error", "error", err)
				if !stats.ClientGone {
					fmt.Fprintf(w, "data: [DONE]\n\n")
					if flusher != nil {
						flusher.Flush()
					}
				}
			}
			break
		}
	}

	if !stats.UsageSeen && stats.OutputTokens == 0 {
		stats.OutputTokens = int(math.Ceil(1.5 * float64(stats.ChunkCount)))
	}
	return stats
}

// streamFrame is the subset of an SSE chunk the pump cares about.
type streamFrame struct {
	Usage   *types.Usage `json:"usage"`
	Choices []struct {
		Delta struct {
			ToolCalls []json.RawMessage `json:"tool_calls"`
		} `json:"delta"`
	} `json:"choices"`
}

func (s *PumpStats) observe(line []byte) {
	line = bytes.TrimSpace(line)
	if !bytes.HasPrefix(line, []byte("data:")) {
		return
	}
	payload := bytes.TrimSpace(line[len("data:"):])
	if len(payload) == 0 || bytes.Equal(payload, []byte("[DONE]")) {
		return
	}
	s.ChunkCount++

	var frame streamFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		return
	}
	if frame.Usage != nil {
		s.InputTokens = frame.Usage.PromptTokens
		s.OutputTokens = frame.Usage.CompletionTokens
		s.UsageSeen = true
	}
	for _, c := range frame.Choices {
		if len(c.Delta.ToolCalls) > 0 {
			s.HadToolCalls = true
		}
	}
}
