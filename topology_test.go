package inference_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notewell/inference"
)

func TestParseTopology(t *testing.T) {
	t.Parallel()

	t.Run("round trips every variant", func(t *testing.T) {
		t.Parallel()
		for _, want := range []inference.Topology{
			inference.TopologyLocalOnly,
			inference.TopologyLocalFirst,
			inference.TopologyCloudFirst,
			inference.TopologyCloudOnly,
		} {
			got, err := inference.ParseTopology(want.String())
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	})

	t.Run("rejects unknown spelling", func(t *testing.T) {
		t.Parallel()
		_, err := inference.ParseTopology("hybrid")
		assert.ErrorIs(t, err, inference.ErrValidation)
	})

	t.Run("rejects empty string", func(t *testing.T) {
		t.Parallel()
		_, err := inference.ParseTopology("")
		assert.ErrorIs(t, err, inference.ErrValidation)
	})
}
