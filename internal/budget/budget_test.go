package budget_test

import (
	"testing"

	"tapedeck/internal/budget"
	"tapedeck/internal/config"
)

func chunking() config.Chunking {
	return config.Default().Chunking
}

func TestChunkSecondsClampsToMax(t *testing.T) {
	est := budget.ChunkSeconds(nil, chunking(), budget.Inputs{
		Width: 720, Height: 576, Scale: 2, FPS: 25,
		FreeBytes: 4 << 40, // 4 TiB: far more than 120s of intermediates
	})
	if est.Fallback {
		t.Fatalf("unexpected fallback: %s", est.Reason)
	}
	if est.Seconds != 120 {
		t.Fatalf("expected max clamp 120, got %d", est.Seconds)
	}
}

func TestChunkSecondsClampsToMin(t *testing.T) {
	est := budget.ChunkSeconds(nil, chunking(), budget.Inputs{
		Width: 720, Height: 576, Scale: 4, FPS: 25,
		FreeBytes: 1 << 30, // 1 GiB: a few seconds at best
	})
	if est.Seconds != 10 {
		t.Fatalf("expected min clamp 10, got %d", est.Seconds)
	}
}

func TestChunkSecondsMidRange(t *testing.T) {
	// 720x576 x2 scale: frame ≈ 1.9 MiB, burn ≈ 95 MiB/s at 25 fps.
	// 16 GiB free and a 0.5 margin allow roughly 85 seconds.
	est := budget.ChunkSeconds(nil, chunking(), budget.Inputs{
		Width: 720, Height: 576, Scale: 2, FPS: 25,
		FreeBytes: 16 << 30,
	})
	if est.Fallback {
		t.Fatalf("unexpected fallback: %s", est.Reason)
	}
	if est.Seconds <= 10 || est.Seconds >= 120 {
		t.Fatalf("expected mid-range estimate, got %d", est.Seconds)
	}
}

func TestChunkSecondsDegenerateInputsFallBack(t *testing.T) {
	cases := []struct {
		name string
		in   budget.Inputs
	}{
		{"zero fps", budget.Inputs{Width: 720, Height: 576, Scale: 2, FPS: 0, FreeBytes: 1 << 30}},
		{"zero free space", budget.Inputs{Width: 720, Height: 576, Scale: 2, FPS: 25, FreeBytes: 0}},
		{"zero width", budget.Inputs{Width: 0, Height: 576, Scale: 2, FPS: 25, FreeBytes: 1 << 30}},
		{"zero scale", budget.Inputs{Width: 720, Height: 576, Scale: 0, FPS: 25, FreeBytes: 1 << 30}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			est := budget.ChunkSeconds(nil, chunking(), tc.in)
			if !est.Fallback {
				t.Fatal("expected fallback estimate")
			}
			if est.Seconds != 10 {
				t.Fatalf("fallback should use minimum, got %d", est.Seconds)
			}
		})
	}
}

func TestChunkSecondsAlwaysWithinBounds(t *testing.T) {
	cfg := chunking()
	for _, free := range []uint64{0, 1, 1 << 20, 1 << 30, 1 << 40, 1 << 50} {
		est := budget.ChunkSeconds(nil, cfg, budget.Inputs{
			Width: 1920, Height: 1080, Scale: 4, FPS: 29.97, FreeBytes: free,
		})
		if est.Seconds < cfg.MinChunkSeconds || est.Seconds > cfg.MaxChunkSeconds {
			t.Fatalf("estimate %d outside [%d, %d] for free=%d",
				est.Seconds, cfg.MinChunkSeconds, cfg.MaxChunkSeconds, free)
		}
	}
}

func TestFreeBytesOnTempDir(t *testing.T) {
	free, err := budget.FreeBytes(t.TempDir())
	if err != nil {
		t.Fatalf("statfs: %v", err)
	}
	if free == 0 {
		t.Fatal("expected non-zero free space on temp filesystem")
	}
}
