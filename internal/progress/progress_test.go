package progress

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiFansOutInOrder(t *testing.T) {
	var order []string
	a := SinkFunc(func(e Event) { order = append(order, "a:"+e.Message) })
	b := SinkFunc(func(e Event) { order = append(order, "b:"+e.Message) })

	s := Multi(a, nil, b)
	s.Emit(Log(LevelInfo, "one"))
	s.Emit(Log(LevelInfo, "two"))

	assert.Equal(t, []string{"a:one", "b:one", "a:two", "b:two"}, order)
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	OrDiscard(r).Emit(Log(LevelWarning, "careful"))
	r.Emit(Progress(1, 3, "checking"))
	r.Emit(Complete(Summary{Successful: 2, Failed: 1, Total: 3}))

	require.Len(t, r.Events(), 3)
	assert.Equal(t, []string{"careful"}, r.Messages())
	assert.Equal(t, 3, r.Events()[2].Summary.Total)

	OrDiscard(nil).Emit(Log(LevelInfo, "dropped"))
	Discard.Emit(Log(LevelInfo, "dropped"))
}

func TestRecorder_Bounded(t *testing.T) {
	r := NewRecorder(3)
	for _, m := range []string{"a", "b", "c", "d", "e"} {
		r.Emit(Log(LevelInfo, m))
	}
	assert.Equal(t, 5, r.Len())
	assert.Equal(t, []string{"c", "d", "e"}, r.Messages())

	mark := r.Len()
	r.Emit(Log(LevelInfo, "f"))
	since := r.Since(mark)
	require.Len(t, since, 1)
	assert.Equal(t, "f", since[0].Message)

	assert.Len(t, r.Since(0), 3, "a mark older than the window returns what is kept")
	assert.Empty(t, r.Since(r.Len()))
}

func TestEventJSON(t *testing.T) {
	b, err := json.Marshal(VideoResult("https://www.youtube.com/watch?v=vid00000001", true))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"video_result","video":"https://www.youtube.com/watch?v=vid00000001","success":true}`, string(b))

	b, err = json.Marshal(VideosFound([]string{"u1", "u2"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"videos_found","videos":["u1","u2"],"total":2}`, string(b))
}
