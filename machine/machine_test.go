package machine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPosition(t *testing.T) {
	require := require.New(t)

	require.True(Origin.IsOrigin())
	require.Equal(Position{}, Origin)

	mpos := NewPosition(10, 20.5, -3)
	wco := NewPosition(1, 0.5, -1)
	require.Equal(NewPosition(9, 20, -2), mpos.Sub(wco))
	require.Equal(mpos, mpos.Sub(wco).Add(wco))
	require.False(mpos.IsOrigin())
	require.Equal("X:10.000 Y:20.500 Z:-3.000", mpos.String())
}

func TestParseActiveState(t *testing.T) {
	tests := []struct {
		label string
		want  ActiveState
		known bool
	}{
		{"Idle", Idle, true},
		{"run", Run, true},
		{"Hold:0", Hold, true},
		{"Door:1", Door, true},
		{" Alarm ", Alarm, true},
		{"Tool", ActiveState("Tool"), false},
		{"", Unknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			st := ParseActiveState(tt.label)
			require.Equal(t, tt.want, st)
			require.Equal(t, tt.known, st.IsKnown())
		})
	}
}

func TestStatusCopies(t *testing.T) {
	require := require.New(t)

	base := Status{}
	next := base.WithState(Run).WithMachinePos(NewPosition(1, 2, 3)).WithWorkPos(NewPosition(4, 5, 6))

	require.Equal(Status{}, base)
	require.Equal(Run, next.State)
	require.Equal(NewPosition(1, 2, 3), next.MachinePos)
	require.Equal(NewPosition(4, 5, 6), next.WorkPos)
}
