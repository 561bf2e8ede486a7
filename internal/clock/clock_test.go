package clock

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/benbeisheim/bughouse-orchestrator/internal/bgtypes"
)

func TestClockStartStopCommitsElapsed(t *testing.T) {
	c := New(time.Second, zerolog.Nop())
	c.Start()
	time.Sleep(10 * time.Millisecond)
	c.Stop()

	remaining := c.Remaining()
	if remaining >= time.Second {
		t.Fatalf("remaining = %v, want less than starting allowance", remaining)
	}
	if remaining <= time.Second-50*time.Millisecond {
		t.Fatalf("remaining = %v, lost more time than expected", remaining)
	}
}

func TestClockStartIsNoOpWhileRunning(t *testing.T) {
	c := New(time.Second, zerolog.Nop())
	c.Start()
	first := c.Remaining()
	c.Start() // should not reset lastStarted
	time.Sleep(5 * time.Millisecond)
	if c.Remaining() >= first {
		t.Fatalf("expected time to keep draining across the redundant Start")
	}
}

func TestClockExpired(t *testing.T) {
	c := New(time.Millisecond, zerolog.Nop())
	c.Start()
	time.Sleep(5 * time.Millisecond)
	c.Stop()
	if !c.Expired() {
		t.Fatalf("expected clock to have expired")
	}
}

func TestBankUpOnTimeDiagonal(t *testing.T) {
	b := NewBank(time.Minute, zerolog.Nop())

	// Drain Bot1's clock relative to Partner, its diagonal counterpart.
	b.For(bgtypes.Bot1).Start()
	time.Sleep(10 * time.Millisecond)
	b.For(bgtypes.Bot1).Stop()

	if b.UpOnTime(bgtypes.Bot1) {
		t.Fatalf("Bot1 drained more time than Partner, should not be up on time")
	}
	if !b.UpOnTime(bgtypes.Partner) {
		t.Fatalf("Partner kept more time than Bot1, should be up on time")
	}
}

func TestBankUpOnTimeIsStrictInequality(t *testing.T) {
	b := NewBank(time.Minute, zerolog.Nop())
	if b.UpOnTime(bgtypes.Bot1) {
		t.Fatalf("equal clocks should not count as up on time")
	}
}
