package tests_test

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/containerd/nerdctl/mod/tigron/expect"
	"github.com/containerd/nerdctl/mod/tigron/test"
	"github.com/containerd/nerdctl/mod/tigron/tig"

	"github.com/dbry/skipper/internal/skipper/tensor"
	"github.com/dbry/skipper/tests/fixtures"
	"github.com/dbry/skipper/tests/testutils"
)

// expectContains verifies stderr/stdout contains substr, mirroring the
// teacher's tests/helpers_test.go comparator shape.
func expectContains(substr string) test.Comparator {
	return func(output string, testing tig.T) {
		testing.Helper()

		if !strings.Contains(output, substr) {
			testing.Log(fmt.Sprintf("expected substring %q not found in output:\n%s", substr, output))
			testing.Fail()
		}
	}
}

// expectLength verifies the output is exactly n bytes long.
func expectLength(n int) test.Comparator {
	return func(output string, testing tig.T) {
		testing.Helper()

		if len(output) != n {
			testing.Log(fmt.Sprintf("expected %d bytes of output, got %d", n, len(output)))
			testing.Fail()
		}
	}
}

func writeFixture(t *testing.T, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	return path
}

// TestPassThrough covers spec.md §8 S1: pass-through of stereo pink noise
// produces output identical in length to the input.
func TestPassThrough(t *testing.T) {
	testCase := testutils.Setup()

	input := fixtures.PinkNoiseStereo(10, 44100)

	testCase.SubTests = []*test.Case{
		{
			Description: "10s of pink noise pass-through, byte-identical length",
			Setup: func(data test.Data, helpers test.Helpers) {
				data.Labels().Set("file", writeFixture(t, "pink.pcm", input))
			},
			Command: func(data test.Data, helpers test.Helpers) test.TestableCommand {
				return helpers.Command("-p", "-c", "2", "-s", "44100", data.Labels().Get("file"))
			},
			Expected: func(_ test.Data, _ test.Helpers) *test.Expected {
				return &test.Expected{ExitCode: expect.ExitCodeSuccess, Output: expectLength(len(input))}
			},
		},
	}

	testCase.Run(t)
}

// TestSkipEverything covers spec.md §8 S2: -n discards all audio.
func TestSkipEverything(t *testing.T) {
	testCase := testutils.Setup()

	input := fixtures.PinkNoiseStereo(10, 44100)

	testCase.SubTests = []*test.Case{
		{
			Description: "skip everything produces zero-length output",
			Setup: func(data test.Data, helpers test.Helpers) {
				data.Labels().Set("file", writeFixture(t, "pink.pcm", input))
			},
			Command: func(data test.Data, helpers test.Helpers) test.TestableCommand {
				return helpers.Command("-n", "-c", "2", "-s", "44100", data.Labels().Get("file"))
			},
			Expected: func(_ test.Data, _ test.Helpers) *test.Expected {
				return &test.Expected{ExitCode: expect.ExitCodeSuccess, Output: expectLength(0)}
			},
		},
	}

	testCase.Run(t)
}

// TestBadChecksumRejected covers spec.md §8 S5: a tensor file whose
// checksum field does not match its payload is rejected, and the filter
// exits non-zero with a checksum error on stderr.
func TestBadChecksumRejected(t *testing.T) {
	testCase := testutils.Setup()

	input := fixtures.PinkNoiseStereo(1, 44100)

	testCase.SubTests = []*test.Case{
		{
			Description: "corrupt tensor file is rejected with non-zero exit",
			Setup: func(data test.Data, helpers test.Helpers) {
				data.Labels().Set("audio", writeFixture(t, "pink.pcm", input))
				data.Labels().Set("tensor", writeFixture(t, "bad.tensor", corruptTensorFile()))
			},
			Command: func(data test.Data, helpers test.Helpers) test.TestableCommand {
				return helpers.Command("-d", data.Labels().Get("tensor"), "-c", "2", "-s", "44100", data.Labels().Get("audio"))
			},
			Expected: func(_ test.Data, _ test.Helpers) *test.Expected {
				return &test.Expected{
					ExitCode: expect.ExitCodeGenericFail,
					Errors:   []error{errors.New("checksum")},
				}
			},
		},
	}

	testCase.Run(t)
}

// corruptTensorFile writes a valid all-zero tensor container and then
// flips the bits of its checksum field, so the payload decompresses cleanly
// and tensor.Load's checksum verification fails (spec.md §8 S5).
func corruptTensorFile() []byte {
	var buf bytes.Buffer
	if err := tensor.Write(&buf, tensor.New()); err != nil {
		panic(err)
	}

	b := buf.Bytes()
	b[4] ^= 0xFF // first byte of the little-endian checksum field

	return b
}
