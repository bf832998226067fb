package pipeline

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jdprep/pkg/contract"
)

func TestGenerateOrderIsPermutation(t *testing.T) {
	for _, n := range []int{0, 1, 2, 17, 1000} {
		order := GenerateOrder(n, NewRand(0))
		require.Len(t, order, n)
		sorted := append([]int(nil), order...)
		sort.Ints(sorted)
		for i, v := range sorted {
			require.Equal(t, i, v)
		}
	}
}

func TestGenerateOrderSeeded(t *testing.T) {
	a := GenerateOrder(100, NewRand(42))
	b := GenerateOrder(100, NewRand(42))
	c := GenerateOrder(100, NewRand(43))
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	require.Len(t, GenerateOrder(5, nil), 5)
}

func TestPartition(t *testing.T) {
	order := []int{9, 3, 7, 1, 0, 2, 8, 5, 4, 6}
	asg, err := Partition(order, Plan{Total: 8, Test: 3, Train: 3, Dev: 2})
	require.NoError(t, err)
	assert.Equal(t, []int{9, 3, 7}, asg.Test)
	assert.Equal(t, []int{1, 0, 2}, asg.Train)
	assert.Equal(t, []int{8, 5}, asg.Dev)

	// 每个 [0,Total) 位置恰好属于一个区间
	all := append(append(append([]int(nil), asg.Test...), asg.Train...), asg.Dev...)
	require.Equal(t, order[:8], all)

	// 追加不应越界改写后续区间
	_ = append(asg.Test, 100)
	assert.Equal(t, []int{1, 0, 2}, asg.Train)
}

func TestPartitionErrors(t *testing.T) {
	order := GenerateOrder(10, NewRand(1))
	_, err := Partition(order, Plan{Total: 8, Test: 3, Train: 3, Dev: 3})
	require.ErrorIs(t, err, contract.ErrConfiguration)
	_, err = Partition(order, Plan{Total: 11, Test: 5, Train: 5, Dev: 1})
	require.ErrorIs(t, err, contract.ErrConfiguration)
	_, err = Partition(order, Plan{Total: 0, Test: -1, Train: 1, Dev: 0})
	require.ErrorIs(t, err, contract.ErrConfiguration)

	asg, err := Partition(order, Plan{})
	require.NoError(t, err)
	require.Empty(t, asg.Test)
}

func TestWriteSplit(t *testing.T) {
	recs := []contract.Record{
		{Code: "int a() {\n  return 1;\r\n}", Tokens: "int a ( ) { return 1 ; }", Summary: "  first  "},
		{Code: "void b()", Tokens: "void b ( )", Summary: "second\n"},
		{Code: "void c()", Tokens: "void c ( )", Summary: "third"},
	}
	w := &memWriter{}
	require.NoError(t, WriteSplit(context.Background(), w, "train", []int{2, 0}, recs))
	require.Equal(t, []string{"train/code.original", "train/code.original_subtoken", "train/javadoc.original"}, w.names())
	assert.Equal(t, []string{"void c()", "int a() {   return 1; }"}, w.lines("train/code.original"))
	assert.Equal(t, []string{"void c ( )", "int a ( ) { return 1 ; }"}, w.lines("train/code.original_subtoken"))
	assert.Equal(t, []string{"third", "first"}, w.lines("train/javadoc.original"))

	// 空切分写出空文件
	w = &memWriter{}
	require.NoError(t, WriteSplit(context.Background(), w, "dev", nil, recs))
	assert.Equal(t, "", w.files["dev/javadoc.original"])

	err := WriteSplit(context.Background(), w, "dev", []int{3}, recs)
	require.ErrorIs(t, err, contract.ErrInvariantViolation)

	w = &memWriter{fail: "test/code.original_subtoken"}
	err = WriteSplit(context.Background(), w, "test", []int{1}, recs)
	require.ErrorIs(t, err, contract.ErrIO)
	require.Contains(t, err.Error(), "test/code.original_subtoken")
}

func TestLineReaderSmallBuffer(t *testing.T) {
	var recs []contract.Record
	var idx []int
	var want strings.Builder
	for i := 0; i < 50; i++ {
		recs = append(recs, contract.Record{Summary: fmt.Sprintf("summary number %d", i)})
		idx = append(idx, 49-i)
	}
	for _, i := range idx {
		want.WriteString(recs[i].Summary + "\n")
	}
	lr := &lineReader{recs: recs, idx: idx, line: func(r contract.Record) string { return r.Summary }}
	var got strings.Builder
	buf := make([]byte, 7)
	for {
		n, err := lr.Read(buf)
		got.Write(buf[:n])
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}
	require.Equal(t, want.String(), got.String())
}
