package pipeline

import (
	"context"
	"fmt"
	"testing"

	"jsonl2parquet/internal/parser/ndjson"
)

func lineChunk(seq int64, lines ...string) LineChunk {
	lc := LineChunk{Seq: seq}
	for i, l := range lines {
		lc.Lines = append(lc.Lines, []byte(l))
		lc.LineNos = append(lc.LineNos, int64(i+1))
	}
	return lc
}

func runTransformAll(t *testing.T, workers int, agg *ErrAgg, chunks ...LineChunk) ([]RecordChunk, *Counters) {
	t.Helper()
	var c Counters
	in := make(chan LineChunk, len(chunks))
	for _, lc := range chunks {
		in <- lc
	}
	close(in)
	out := make(chan RecordChunk, len(chunks))

	dec := ndjson.NewDecoder(testSchema(), ndjson.Options{})
	if err := RunTransform(context.Background(), in, out, TransformConfig{Decoder: dec, Workers: workers, Errors: agg}, &c); err != nil {
		t.Fatalf("RunTransform: %v", err)
	}
	var got []RecordChunk
	for rc := range out {
		got = append(got, rc)
	}
	return got, &c
}

func TestRunTransform_SuppressesEmptyChunks(t *testing.T) {
	t.Parallel()

	agg := NewErrAgg(2)
	got, c := runTransformAll(t, 2, agg,
		lineChunk(0, `{"id":"a"}`, `not json`),
		lineChunk(1, `[1,2]`, `"str"`, `{broken`),
		lineChunk(2, `{"id":"b","n":7}`),
	)

	if len(got) != 2 || got[0].Seq != 0 || got[1].Seq != 2 {
		t.Fatalf("got %d chunks (%+v), want seqs 0 and 2", len(got), got)
	}
	if len(got[0].Records) != 1 || got[0].Records[0][0] != "a" {
		t.Fatalf("chunk 0 records=%v", got[0].Records)
	}
	if got[1].Records[0][1] != int64(7) {
		t.Fatalf("chunk 2 n=%v, want 7", got[1].Records[0][1])
	}
	if c.RecordsParsed.Load() != 2 || c.DecodeFailures.Load() != 4 {
		t.Fatalf("parsed=%d failures=%d, want 2 and 4", c.RecordsParsed.Load(), c.DecodeFailures.Load())
	}
	if agg.Count() != 4 || len(agg.Samples()) != 2 {
		t.Fatalf("agg count=%d samples=%d, want 4 and 2", agg.Count(), len(agg.Samples()))
	}
	reasons := agg.Reasons()
	if reasons["invalid_json"] != 2 || reasons["not_object"] != 2 {
		t.Fatalf("reasons=%v", reasons)
	}
}

func TestRunTransform_PreservesOrderAcrossWorkers(t *testing.T) {
	t.Parallel()

	const n = 5000
	lines := make([]string, n)
	for i := range lines {
		if i%97 == 0 {
			lines[i] = "garbage"
			continue
		}
		lines[i] = fmt.Sprintf(`{"id":"%d","n":%d}`, i, i)
	}

	for _, workers := range []int{1, 3, 8} {
		got, c := runTransformAll(t, workers, nil, lineChunk(0, lines...))
		if len(got) != 1 {
			t.Fatalf("workers=%d: %d chunks, want 1", workers, len(got))
		}
		prev := int64(-1)
		for _, r := range got[0].Records {
			v := r[1].(int64)
			if v <= prev {
				t.Fatalf("workers=%d: order broken at %d after %d", workers, v, prev)
			}
			prev = v
		}
		bad := int64((n + 96) / 97)
		if c.DecodeFailures.Load() != bad || c.RecordsParsed.Load() != n-bad {
			t.Fatalf("workers=%d: parsed=%d failures=%d", workers, c.RecordsParsed.Load(), c.DecodeFailures.Load())
		}
	}
}

func TestErrAgg(t *testing.T) {
	t.Parallel()

	a := NewErrAgg(2)
	a.AddLine(3, "invalid_json")
	a.AddLine(9, "not_object")
	a.AddLine(12, "invalid_json")

	if a.Count() != 3 {
		t.Fatalf("count=%d, want 3", a.Count())
	}
	s := a.Samples()
	if len(s) != 2 || s[0] != "line 3: invalid_json" || s[1] != "line 9: not_object" {
		t.Fatalf("samples=%v", s)
	}
	if k := a.ReasonKeys(); len(k) != 2 || k[0] != "invalid_json" {
		t.Fatalf("reason keys=%v", k)
	}
}
