package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestMaskReplacesRecognizedPII(t *testing.T) {
	in := "contact jane@example.com at 555-123-4567 from 10.0.0.5"
	assert.Equal(t, "contact [EMAIL] at [PHONE] from [IPV4]", Mask(in))
}

func TestMaskLeavesCleanTextAlone(t *testing.T) {
	in := "what is the company leave policy"
	assert.Equal(t, in, Mask(in))
	assert.Equal(t, "", Mask(""))
}

func TestMaskPlaceholdersAreFixedPoints(t *testing.T) {
	in := "reach [EMAIL] or [PHONE] at [IPV4]"
	assert.Equal(t, in, Mask(in))
}

func TestMaskIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.String().Draw(t, "text")
		once := Mask(s)
		if twice := Mask(once); twice != once {
			t.Fatalf("masking is not idempotent:\n in: %q\n 1x: %q\n 2x: %q", s, once, twice)
		}
	})
}

func TestMaskSpacedPhone(t *testing.T) {
	assert.Equal(t, "call [PHONE] now", Mask("call 44 20 7946 0958 now"))
}
