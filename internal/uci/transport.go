// Package uci drives a single UCI-speaking engine subprocess over its
// stdin/stdout pipes. One Transport owns exactly one subprocess and allows
// exactly one outstanding request at a time; callers must await a command's
// result before issuing the next one on the same Transport.
package uci

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Score is a UCI evaluation, exactly as the engine reported it: centipawn
// scores are White-relative, mate scores are side-to-move-relative.
type Score struct {
	CP   *int
	Mate *int
}

func (s Score) String() string {
	if s.Mate != nil {
		return fmt.Sprintf("mate %d", *s.Mate)
	}
	if s.CP != nil {
		return fmt.Sprintf("cp %d", *s.CP)
	}
	return "none"
}

// Info is the last "info" line seen during a search or evaluation.
type Info struct {
	Depth int
	Score Score
	Nodes int64
	TimeMS int64
	PV    []string
}

// BestMove is the parsed "bestmove" response.
type BestMove struct {
	Move   string
	Ponder string
}

// IsNoMove reports whether move denotes "no legal move" per spec.md §6.
func IsNoMove(move string) bool {
	return move == "" || move == "0000" || move == "(none)"
}

// ErrTransportFailed is returned when the engine process dies, a pipe
// read or write fails, or, during a handshake or isready sync, the
// caller's context ends before the expected trigger line arrives. The
// transport sets no deadline of its own: a wait is bounded only by the
// caller's ctx, and a search cancelled through ctx returns ctx.Err()
// rather than this type. Per spec.md §7 this is a TransportFailure:
// fatal for this handle.
type ErrTransportFailed struct {
	Op  string
	Err error
}

func (e *ErrTransportFailed) Error() string {
	return fmt.Sprintf("uci: transport failed during %s: %v", e.Op, e.Err)
}

func (e *ErrTransportFailed) Unwrap() error { return e.Err }

// Transport owns one engine subprocess.
type Transport struct {
	path string
	args []string
	log  zerolog.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	scanner *bufio.Scanner
	exited  chan struct{}
}

// NewTransport creates a Transport pointing at the given engine binary.
// The process is not started until Initialize is called.
func NewTransport(path string, args []string, log zerolog.Logger) *Transport {
	return &Transport{path: path, args: args, log: log}
}

// Initialize spawns the subprocess and performs the "uci"/"uciok" then
// "isready"/"readyok" handshake.
func (t *Transport) Initialize(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	cmd := exec.CommandContext(ctx, t.path, t.args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return &ErrTransportFailed{Op: "spawn", Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &ErrTransportFailed{Op: "spawn", Err: err}
	}

	t.cmd = cmd
	t.stdin = stdin
	t.scanner = bufio.NewScanner(stdout)
	t.scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	t.exited = make(chan struct{})

	if err := cmd.Start(); err != nil {
		return &ErrTransportFailed{Op: "spawn", Err: err}
	}
	go func() {
		_ = cmd.Wait()
		close(t.exited)
	}()

	if err := t.sendLocked("uci"); err != nil {
		return &ErrTransportFailed{Op: "uci", Err: err}
	}
	if _, err := t.readUntilLocked(ctx, "uciok"); err != nil {
		return &ErrTransportFailed{Op: "uci", Err: err}
	}
	if err := t.sendLocked("isready"); err != nil {
		return &ErrTransportFailed{Op: "isready", Err: err}
	}
	if _, err := t.readUntilLocked(ctx, "readyok"); err != nil {
		return &ErrTransportFailed{Op: "isready", Err: err}
	}

	t.log.Info().Str("path", t.path).Msg("uci transport initialized")
	return nil
}

// SetOptions emits "setoption name N value V" for each entry, then
// re-syncs with isready/readyok, in map iteration order.
func (t *Transport) SetOptions(ctx context.Context, options map[string]string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for name, value := range options {
		if err := t.sendLocked(fmt.Sprintf("setoption name %s value %s", name, value)); err != nil {
			return &ErrTransportFailed{Op: "setoption", Err: err}
		}
	}
	if err := t.sendLocked("isready"); err != nil {
		return &ErrTransportFailed{Op: "setoption", Err: err}
	}
	if _, err := t.readUntilLocked(ctx, "readyok"); err != nil {
		return &ErrTransportFailed{Op: "setoption", Err: err}
	}
	return nil
}

// SetPosition emits "position fen F [moves ...]" then re-syncs.
func (t *Transport) SetPosition(ctx context.Context, fen string, moves []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	line := fmt.Sprintf("position fen %s", fen)
	if len(moves) > 0 {
		line += " moves " + strings.Join(moves, " ")
	}
	if err := t.sendLocked(line); err != nil {
		return &ErrTransportFailed{Op: "position", Err: err}
	}
	if err := t.sendLocked("isready"); err != nil {
		return &ErrTransportFailed{Op: "position", Err: err}
	}
	if _, err := t.readUntilLocked(ctx, "readyok"); err != nil {
		return &ErrTransportFailed{Op: "position", Err: err}
	}
	return nil
}

// BestMove emits "go movetime T" and returns the parsed bestmove.
func (t *Transport) BestMove(ctx context.Context, timeMS int) (BestMove, error) {
	return t.goAndRead(ctx, fmt.Sprintf("go movetime %d", timeMS))
}

// BestMoveWithSearchMoves emits "go movetime T searchmoves ..." to
// restrict the search root, per spec.md §4.1.
func (t *Transport) BestMoveWithSearchMoves(ctx context.Context, timeMS int, candidates []string) (BestMove, error) {
	if len(candidates) == 0 {
		return t.BestMove(ctx, timeMS)
	}
	line := fmt.Sprintf("go movetime %d searchmoves %s", timeMS, strings.Join(candidates, " "))
	return t.goAndRead(ctx, line)
}

// Evaluation emits "go depth D" and returns the last score seen before
// bestmove, per spec.md §4.1/§4.5.
func (t *Transport) Evaluation(ctx context.Context, depth int) (Score, error) {
	bm, info, err := t.goAndReadInfo(ctx, fmt.Sprintf("go depth %d", depth))
	_ = bm
	if err != nil {
		return Score{}, err
	}
	return info.Score, nil
}

// Stop emits "stop" and consumes the resulting bestmove.
func (t *Transport) Stop(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.sendLocked("stop"); err != nil {
		return &ErrTransportFailed{Op: "stop", Err: err}
	}
	_, err := t.readUntilLocked(ctx, "bestmove")
	if err != nil {
		return &ErrTransportFailed{Op: "stop", Err: err}
	}
	return nil
}

// Shutdown emits "quit" and, after a short grace window, forcibly kills
// the process.
func (t *Transport) Shutdown() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cmd == nil {
		return nil
	}
	_ = t.sendLocked("quit")
	if t.stdin != nil {
		_ = t.stdin.Close()
	}

	select {
	case <-t.exited:
	case <-time.After(2 * time.Second):
		t.log.Warn().Str("path", t.path).Msg("engine did not exit, killing")
		if t.cmd.Process != nil {
			_ = t.cmd.Process.Kill()
		}
		<-t.exited
	}
	return nil
}

func (t *Transport) goAndRead(ctx context.Context, line string) (BestMove, error) {
	bm, _, err := t.goAndReadInfo(ctx, line)
	return bm, err
}

func (t *Transport) goAndReadInfo(ctx context.Context, line string) (BestMove, Info, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.sendLocked(line); err != nil {
		return BestMove{}, Info{}, &ErrTransportFailed{Op: "go", Err: err}
	}
	return t.readSearchLocked(ctx)
}

func (t *Transport) sendLocked(line string) error {
	if t.stdin == nil {
		return fmt.Errorf("uci: transport not initialized")
	}
	_, err := io.WriteString(t.stdin, line+"\n")
	return err
}

// readUntilLocked reads lines until one contains trigger, returning that
// line. Must be called with mu held.
//
// On ctx cancellation this still waits (bounded) for the reading
// goroutine below to actually exit before returning, since mu is
// released the moment this function returns: abandoning that goroutine
// mid-Scan would let it race the very next call's own reader against
// the same scanner. There is no "stop" equivalent for a handshake wait
// (unlike readSearchLocked's mid-search case), so the bound is a plain
// grace period.
func (t *Transport) readUntilLocked(ctx context.Context, trigger string) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		for t.scanner.Scan() {
			line := t.scanner.Text()
			if strings.Contains(line, trigger) {
				ch <- result{line: line}
				return
			}
		}
		if err := t.scanner.Err(); err != nil {
			ch <- result{err: err}
		} else {
			ch <- result{err: io.EOF}
		}
	}()

	select {
	case r := <-ch:
		return r.line, r.err
	case <-ctx.Done():
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.log.Warn().Str("trigger", trigger).Msg("reader did not exit within grace period after context cancellation")
		case <-t.exited:
		}
		return "", ctx.Err()
	case <-t.exited:
		return "", fmt.Errorf("uci: engine process exited before %q", trigger)
	}
}

// readSearchLocked reads "info" lines, retaining the last score seen,
// until a "bestmove" line arrives. Must be called with mu held.
//
// On ctx cancellation this sends "stop" and waits (with a bounded grace
// period) for the reading goroutine below to actually drain the
// resulting "bestmove" before returning, rather than abandoning it
// mid-Scan: mu is released the moment this function returns, and a
// left-running reader would race the very next request's own reader
// against the same scanner, corrupting that request's response.
func (t *Transport) readSearchLocked(ctx context.Context) (BestMove, Info, error) {
	type result struct {
		bm   BestMove
		info Info
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		var last Info
		for t.scanner.Scan() {
			line := t.scanner.Text()
			switch {
			case strings.HasPrefix(line, "info "):
				last = parseInfoLine(line, last)
			case strings.HasPrefix(line, "bestmove"):
				ch <- result{bm: parseBestMove(line), info: last}
				return
			}
		}
		if err := t.scanner.Err(); err != nil {
			ch <- result{err: err}
		} else {
			ch <- result{err: io.EOF}
		}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return BestMove{}, Info{}, &ErrTransportFailed{Op: "go", Err: r.err}
		}
		return r.bm, r.info, nil
	case <-ctx.Done():
		_ = t.sendLocked("stop")
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.log.Warn().Msg("engine did not respond to stop within grace period after context cancellation")
		case <-t.exited:
		}
		return BestMove{}, Info{}, ctx.Err()
	case <-t.exited:
		return BestMove{}, Info{}, &ErrTransportFailed{Op: "go", Err: fmt.Errorf("engine process exited mid-search")}
	}
}

func parseBestMove(line string) BestMove {
	fields := strings.Fields(line)
	var bm BestMove
	for i := 1; i < len(fields); i++ {
		switch fields[i] {
		case "ponder":
			if i+1 < len(fields) {
				bm.Ponder = fields[i+1]
			}
		default:
			if bm.Move == "" {
				bm.Move = fields[i]
			}
		}
	}
	return bm
}

func parseInfoLine(line string, prev Info) Info {
	fields := strings.Fields(line)
	info := prev
	for i := 0; i < len(fields); i++ {
		switch fields[i] {
		case "depth":
			if i+1 < len(fields) {
				if d, err := strconv.Atoi(fields[i+1]); err == nil {
					info.Depth = d
				}
			}
		case "nodes":
			if i+1 < len(fields) {
				if n, err := strconv.ParseInt(fields[i+1], 10, 64); err == nil {
					info.Nodes = n
				}
			}
		case "time":
			if i+1 < len(fields) {
				if ms, err := strconv.ParseInt(fields[i+1], 10, 64); err == nil {
					info.TimeMS = ms
				}
			}
		case "score":
			if i+2 < len(fields) {
				switch fields[i+1] {
				case "cp":
					if cp, err := strconv.Atoi(fields[i+2]); err == nil {
						info.Score = Score{CP: &cp}
					}
				case "mate":
					if m, err := strconv.Atoi(fields[i+2]); err == nil {
						info.Score = Score{Mate: &m}
					}
				}
			}
		case "pv":
			info.PV = append([]string(nil), fields[i+1:]...)
			i = len(fields)
		}
	}
	return info
}
