package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/samvad-hq/httpbridge/internal/domain"
	"github.com/samvad-hq/httpbridge/pkg/bridge"
	"github.com/samvad-hq/httpbridge/pkg/headers"
)

const defaultChunkSize = 32 * 1024

type requestFlags struct {
	headers   []string
	data      string
	dataFile  string
	timeout   time.Duration
	chunkSize int
	output    string
	fail      bool
}

func (c *CLI) requestCommand(method string) *cobra.Command {
	var f requestFlags
	cmd := &cobra.Command{
		Use:   strings.ToLower(method) + " <url>",
		Short: fmt.Sprintf("Send a %s request and stream the body to stdout", method),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hdrs, err := parseHeaderFlags(f.headers)
			if err != nil {
				return exitErr(ExitUsageError, err)
			}
			body, err := f.body()
			if err != nil {
				return exitErr(ExitUsageError, err)
			}
			if f.chunkSize <= 0 {
				return exitErr(ExitUsageError, fmt.Errorf("--chunk-size must be positive"))
			}
			timeoutMs, err := toMillis(f.timeout)
			if err != nil {
				return exitErr(ExitUsageError, err)
			}

			out := cmd.OutOrStdout()
			if f.output != "" {
				file, err := os.Create(f.output)
				if err != nil {
					return exitErr(ExitUsageError, fmt.Errorf("create output: %w", err))
				}
				defer file.Close()
				out = file
			}

			return c.withBridge(cmd.Context(), func(b *bridge.Bridge) error {
				res := b.Request(method, args[0], hdrs, body, timeoutMs)
				if res.Code != bridge.OK {
					return exitErr(exitCodeFor(res.Code), fmt.Errorf("%s %s: %s", method, args[0], lastError(b)))
				}
				defer b.Free(res.Handle)

				printStatus(cmd.ErrOrStderr(), method, args[0], res)
				if err := streamBody(b, res.Handle, f.chunkSize, out); err != nil {
					return err
				}
				if f.fail && res.Status >= 400 {
					return exitErr(ExitRequestFailure, fmt.Errorf("server responded with status %d", res.Status))
				}
				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVarP(&f.headers, "header", "H", nil, `request header "Name: value" (repeatable)`)
	flags.DurationVar(&f.timeout, "timeout", 30*time.Second, "request timeout, 0 for none")
	flags.IntVar(&f.chunkSize, "chunk-size", defaultChunkSize, "bytes pulled per read call")
	flags.StringVarP(&f.output, "output", "o", "", "write the body to a file instead of stdout")
	flags.BoolVar(&f.fail, "fail", false, "exit non-zero on 4xx and 5xx responses")
	if domain.Method(method).AcceptsBody() {
		flags.StringVarP(&f.data, "data", "d", "", "request body")
		flags.StringVar(&f.dataFile, "data-file", "", "read the request body from a file")
	}
	return cmd
}

func (f requestFlags) body() ([]byte, error) {
	if f.data != "" && f.dataFile != "" {
		return nil, fmt.Errorf("--data and --data-file are mutually exclusive")
	}
	if f.dataFile != "" {
		data, err := os.ReadFile(f.dataFile)
		if err != nil {
			return nil, fmt.Errorf("read data file: %w", err)
		}
		return data, nil
	}
	if f.data != "" {
		return []byte(f.data), nil
	}
	return nil, nil
}

// parseHeaderFlags turns "Name: value" flags into the JSON object the
// bridge accepts.
func parseHeaderFlags(raw []string) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	h := make(map[string]string, len(raw))
	for _, line := range raw {
		name, value, ok := strings.Cut(line, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return "", fmt.Errorf("invalid header %q (want \"Name: value\")", line)
		}
		h[name] = strings.TrimSpace(value)
	}
	return headers.Encode(h)
}

func toMillis(d time.Duration) (int32, error) {
	if d < 0 {
		return 0, fmt.Errorf("timeout must not be negative")
	}
	ms := d.Milliseconds()
	if d > 0 && ms == 0 {
		ms = 1
	}
	if ms > int64(^uint32(0)>>1) {
		return 0, fmt.Errorf("timeout %s is too large", d)
	}
	return int32(ms), nil
}

// streamBody pulls the body through a fixed buffer, the way a foreign
// caller would.
func streamBody(b *bridge.Bridge, handle uint64, chunkSize int, w io.Writer) error {
	buf := make([]byte, chunkSize)
	for {
		n := b.Read(handle, buf)
		if n < 0 {
			code := bridge.Code(n)
			return exitErr(exitCodeFor(code), fmt.Errorf("read body: %s", lastError(b)))
		}
		if n == 0 {
			return nil
		}
		if _, err := w.Write(buf[:n]); err != nil {
			return exitErr(ExitInternalError, fmt.Errorf("write body: %w", err))
		}
	}
}

func statusColor(status int32) *color.Color {
	switch {
	case status >= 500:
		return color.New(color.FgRed, color.Bold)
	case status >= 400:
		return color.New(color.FgYellow)
	case status >= 300:
		return color.New(color.FgCyan)
	default:
		return color.New(color.FgGreen)
	}
}

func printStatus(w io.Writer, method, url string, res bridge.Result) {
	statusColor(res.Status).Fprintf(w, "%s %s -> %d (%d bytes)\n", method, url, res.Status, res.Length)
}
