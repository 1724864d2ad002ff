package dataset

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"barangay-helpdesk/internal/domain"
)

const sampleCSV = `User Query,Intent,Response
How do I get a barangay clearance?,clearance_howto,"Visit the barangay hall, bring a valid ID."
What are the clearance requirements?,clearance_howto,Bring a valid ID and proof of residency.
"Where is the hall, exactly?",location,"It is beside the ""old"" chapel."
Missing response row,orphan,
Need an indigency certificate,indigency,"Line one
line two"
`

func TestParse_HandlesQuotesAndDropsIncompleteRows(t *testing.T) {
	entries, err := Parse(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	want := []domain.DatasetEntry{
		{Query: "How do I get a barangay clearance?", Intent: "clearance_howto", Response: "Visit the barangay hall, bring a valid ID."},
		{Query: "What are the clearance requirements?", Intent: "clearance_howto", Response: "Bring a valid ID and proof of residency."},
		{Query: "Where is the hall, exactly?", Intent: "location", Response: `It is beside the "old" chapel.`},
		{Query: "Need an indigency certificate", Intent: "indigency", Response: "Line one\nline two"},
	}
	if diff := cmp.Diff(want, entries); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_ColumnOrderFromHeader(t *testing.T) {
	entries, err := Parse(strings.NewReader("\ufeffResponse, Intent ,User Query,Extra\nHello back,greet,hello,x\n"))
	require.NoError(t, err)
	require.Equal(t, []domain.DatasetEntry{{Query: "hello", Intent: "greet", Response: "Hello back"}}, entries)
}

func TestParse_MissingColumns(t *testing.T) {
	_, err := Parse(strings.NewReader("Question,Answer\nq,a\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "header")

	_, err = Parse(strings.NewReader(""))
	require.Error(t, err)
}

func TestStore_LoadIndexesByIntent(t *testing.T) {
	s := New(Static(sampleCSV))
	require.False(t, s.Loaded())

	s.Load(context.Background())
	require.True(t, s.Loaded())
	require.Equal(t, 4, s.Len())
	require.Equal(t, []string{"clearance_howto", "location", "indigency"}, s.Intents())
	require.Len(t, s.ForIntent("clearance_howto"), 2)
	require.Empty(t, s.ForIntent("unknown"))

	total := 0
	for _, intent := range s.Intents() {
		for _, e := range s.ForIntent(intent) {
			require.Contains(t, s.All(), e)
			total++
		}
	}
	require.Equal(t, len(s.All()), total)
}

func TestStore_LoadIsIdempotent(t *testing.T) {
	var calls atomic.Int32
	src := SourceFunc(func(context.Context) ([]byte, error) {
		calls.Add(1)
		return []byte(sampleCSV), nil
	})
	s := New(src)
	s.Load(context.Background())
	s.Load(context.Background())
	require.Equal(t, int32(1), calls.Load())
}

func TestStore_FetchFailureYieldsEmptyLoadedCorpus(t *testing.T) {
	var calls atomic.Int32
	src := SourceFunc(func(context.Context) ([]byte, error) {
		calls.Add(1)
		return nil, errors.New("404")
	})
	s := New(src)
	s.Load(context.Background())
	require.True(t, s.Loaded())
	require.Zero(t, s.Len())

	s.Load(context.Background())
	require.Equal(t, int32(1), calls.Load())
}

func TestStore_CancelledLoadIsRetried(t *testing.T) {
	var calls atomic.Int32
	src := SourceFunc(func(ctx context.Context) ([]byte, error) {
		calls.Add(1)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return []byte(sampleCSV), nil
	})
	s := New(src)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Load(ctx)
	require.False(t, s.Loaded())
	require.Zero(t, s.Len())

	s.Load(context.Background())
	require.True(t, s.Loaded())
	require.NotZero(t, s.Len())
	require.Equal(t, int32(2), calls.Load())
}

func TestStore_NilSource(t *testing.T) {
	s := New(nil)
	s.Load(context.Background())
	require.True(t, s.Loaded())
	require.Empty(t, s.All())
}

func TestStore_SamplesAndResponses(t *testing.T) {
	s := New(Static(sampleCSV))
	s.Load(context.Background())

	require.Equal(t, []string{"How do I get a barangay clearance?"}, s.SampleQueries("clearance_howto", 1))
	require.Len(t, s.SampleQueries("clearance_howto", 0), 2)
	require.Empty(t, s.SampleQueries("nope", 3))

	resp, ok := s.ResponseForIntent("location")
	require.True(t, ok)
	require.Equal(t, `It is beside the "old" chapel.`, resp)
	_, ok = s.ResponseForIntent("nope")
	require.False(t, ok)
}

func TestFile_MissingPath(t *testing.T) {
	_, err := File{Path: t.TempDir() + "/missing.csv"}.Fetch(context.Background())
	require.Error(t, err)
}
