package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSuccessResponse_WithData(t *testing.T) {
	resp, err := NewSuccessResponse(VersionInfo{Version: "1.0.0"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)

	var info VersionInfo
	require.NoError(t, resp.UnmarshalData(&info))
	assert.Equal(t, "1.0.0", info.Version)
}

func TestNewSuccessResponse_NilData(t *testing.T) {
	resp, err := NewSuccessResponse(nil)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Data)

	var ignored VersionInfo
	assert.NoError(t, resp.UnmarshalData(&ignored))
}

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse(CmdStartContainer, ErrCodeNotFound, "no such container")
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CmdStartContainer, resp.Error.Command)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
	assert.Equal(t, "no such container", resp.Error.Message)
}

func TestParseResponse_SuccessEnvelope(t *testing.T) {
	raw := []byte(`{"success":true,"data":{"id":"abc123"}}`)
	resp, err := ParseResponse(raw)
	require.NoError(t, err)
	assert.True(t, resp.Success)

	var result CreateResult
	require.NoError(t, resp.UnmarshalData(&result))
	assert.Equal(t, "abc123", result.ID)
}

func TestParseResponse_ErrorEnvelope(t *testing.T) {
	raw := []byte(`{"success":false,"error":{"command":"pull-image","code":"pull_failed","message":"denied"}}`)
	resp, err := ParseResponse(raw)
	require.NoError(t, err)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodePullFailed, resp.Error.Code)
}

func TestParseResponse_Garbage(t *testing.T) {
	_, err := ParseResponse([]byte("ssh: command not found"))
	assert.Error(t, err)
}
