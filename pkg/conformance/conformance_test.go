package conformance

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bpolania/DeltaNEAR-sub001/pkg/canonical"
)

func TestCorpus(t *testing.T) {
	c, err := LoadCorpus("testdata")
	require.NoError(t, err)
	require.NotEmpty(t, c.Vectors)
	require.NotEmpty(t, c.Negative)

	for _, v := range c.Vectors {
		v := v
		t.Run("positive/"+v.Name, func(t *testing.T) {
			require.NoError(t, c.RunVector(v))
		})
	}
	for _, v := range c.Negative {
		v := v
		t.Run("negative/"+v.Name, func(t *testing.T) {
			require.NoError(t, c.RunNegative(v))
		})
	}
}

func TestNegativeCodesAreNormative(t *testing.T) {
	c, err := LoadCorpus("testdata")
	require.NoError(t, err)

	known := map[string]bool{}
	for _, code := range canonical.AllReasonCodes() {
		known[code] = true
	}
	for _, v := range c.Negative {
		require.True(t, known[v.ErrorCode], "vector %s uses unknown code %s", v.Name, v.ErrorCode)
	}
}

func TestRunReportsTamperedVector(t *testing.T) {
	c, err := LoadCorpus("testdata")
	require.NoError(t, err)

	bad := c.Vectors[0]
	bad.SHA256 = "0000000000000000000000000000000000000000000000000000000000000000"
	require.Error(t, c.RunVector(bad))
}
