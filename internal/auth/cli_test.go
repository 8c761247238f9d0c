package auth

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCLIHelper(t *testing.T) {
	svc := newTestService(t)
	var out bytes.Buffer
	cli := NewCLIHelper(svc, &out)
	ctx := context.Background()

	require.NoError(t, cli.AddUser(ctx, "carol", "pw", nil))
	assert.Contains(t, out.String(), "User 'carol' created with roles USER")

	require.NoError(t, cli.AddUser(ctx, "dave", "pw", []string{"admin", "user"}))
	out.Reset()
	require.NoError(t, cli.ListUsers(ctx))
	assert.Contains(t, out.String(), "Users (2 total)")
	assert.Contains(t, out.String(), "ADMIN,USER")

	out.Reset()
	require.NoError(t, cli.DeleteUser(ctx, "carol"))
	assert.Contains(t, out.String(), "User 'carol' deleted")
	assert.Error(t, cli.DeleteUser(ctx, "carol"))
	assert.Error(t, cli.AddUser(ctx, "dave", "pw", nil))
}
