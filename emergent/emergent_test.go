package emergent

import (
	"context"
	"testing"

	"github.com/agencykit/agencykit/core"
	"github.com/stretchr/testify/assert"
)

func TestPassthrough_CopiesRoles(t *testing.T) {
	input := core.ExecutionInput{
		Goal: "Report",
		Roles: []core.SeatDefinition{
			{RoleID: "analyst", PersonaID: "p1"},
			{RoleID: "writer", PersonaID: "p2"},
		},
	}

	dec, err := Passthrough{}.Transform(context.Background(), input)
	assert.NoError(t, err)
	assert.Equal(t, input.Roles, dec.Roles)
	assert.Nil(t, dec.Context)

	// The decomposition owns its slice; mutating it must not leak back.
	dec.Roles[0].RoleID = "mutated"
	assert.Equal(t, "analyst", input.Roles[0].RoleID)
}

func TestContext_Dispose(t *testing.T) {
	disposed := 0
	ctx := NewContext(map[string]string{"plan": "a->b"}, func() { disposed++ })

	ctx.Dispose()
	ctx.Dispose()
	assert.Equal(t, 1, disposed)

	var nilCtx *Context
	nilCtx.Dispose() // must not panic
}
