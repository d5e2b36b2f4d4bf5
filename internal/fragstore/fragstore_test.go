package fragstore

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scigolib/mdr/internal/utils"
)

func TestPath(t *testing.T) {
	ref := Ref{Dir: "/tier0", Tier: 0, Kind: KindParity, Index: 2, Variable: "/group/temp"}
	require.Equal(t, "/tier0/nyx.refactored.tier.0.parity.2.group_temp.h5", Path("nyx", ref, "h5"))
	require.Equal(t, "root", SafeName("/"))
}

func TestNew(t *testing.T) {
	for _, name := range []string{"", "hdf5", "dir", "memory"} {
		s, err := New(name, "x")
		require.NoError(t, err)
		require.NotNil(t, s)
	}
	_, err := New("s3", "x")
	require.ErrorIs(t, err, utils.ErrConfiguration)
}

func TestSinks_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	sizes := []int{0, 1, 3, 4, 5, 32, 1027}

	sinks := []Sink{
		&HDF5Sink{Prefix: "field"},
		&DirSink{Prefix: "field"},
		NewMemSink(),
	}
	for _, sink := range sinks {
		t.Run(sink.Name(), func(t *testing.T) {
			dir := t.TempDir()
			for i, n := range sizes {
				frag := make([]byte, n)
				rng.Read(frag)
				if n > 0 {
					frag[n-1] = 0xff
				}

				loc, err := sink.Write(Ref{Dir: dir, Tier: 1, Kind: KindData, Index: i, Variable: "temp"}, frag)
				require.NoError(t, err)

				got, err := sink.Read(loc)
				require.NoError(t, err)
				require.Equal(t, len(frag), len(got))
				require.Equal(t, frag, got)
			}
		})
	}
}

func TestMemSink_Drop(t *testing.T) {
	s := NewMemSink()
	loc, err := s.Write(Ref{Kind: KindData, Variable: "v"}, []byte("abc"))
	require.NoError(t, err)
	require.Equal(t, 1, s.Len())

	s.Drop(loc)
	_, err = s.Read(loc)
	require.ErrorIs(t, err, utils.ErrPersistence)
}

func TestDirSink_Missing(t *testing.T) {
	s := &DirSink{}
	_, err := s.Read(filepath.Join(t.TempDir(), "absent.frag"))
	require.ErrorIs(t, err, utils.ErrPersistence)
}

func TestPackWords(t *testing.T) {
	words := packWords([]byte{1, 2, 3, 4, 0xff})
	require.Equal(t, []int32{5, 0x04030201, 0xff}, words)

	values := make([]float64, len(words))
	for i, w := range words {
		values[i] = float64(w)
	}
	b, err := unpackWords(values)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4, 0xff}, b)

	_, err = unpackWords([]float64{9, 0})
	require.Error(t, err)
	_, err = unpackWords(nil)
	require.Error(t, err)
}
