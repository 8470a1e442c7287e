package proto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBind_MakeMoveIgnoresBoardContents(t *testing.T) {
	tests := []struct {
		name  string
		frame string
	}{
		{"no board", `{"event":"makeMove","payload":{"roomId":"r1","row":1,"col":2}}`},
		{"unknown symbols", `{"event":"makeMove","payload":{"roomId":"r1","row":1,"col":2,"board":[["Z","?"],[7]]}}`},
		{"not a grid", `{"event":"makeMove","payload":{"roomId":"r1","row":1,"col":2,"board":"junk"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Decode([]byte(tt.frame))
			require.NoError(t, err)

			var move MakeMovePayload
			require.NoError(t, env.Bind(&move))
			assert.Equal(t, "r1", move.RoomID)
			assert.Equal(t, 1, move.Row)
			assert.Equal(t, 2, move.Col)
		})
	}
}

func TestBind_Validation(t *testing.T) {
	env, err := Decode([]byte(`{"event":"makeMove","payload":{"row":0,"col":0}}`))
	require.NoError(t, err)
	var move MakeMovePayload
	assert.ErrorContains(t, env.Bind(&move), "roomId")

	env, err = Decode([]byte(`{"event":"findMatch","payload":null}`))
	require.NoError(t, err)
	var find FindMatchPayload
	require.NoError(t, env.Bind(&find))
	assert.Zero(t, find.GridSize)

	_, err = Decode([]byte(`{"payload":{}}`))
	assert.Error(t, err)
}
