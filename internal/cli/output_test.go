package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/streamhub/internal/config"
	"github.com/roach88/streamhub/internal/router"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	data := map[string]string{"result": "success"}
	err := formatter.Success(data, "ignored in json")
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"result": "success"}, resp.Data)
	assert.NotContains(t, buf.String(), "ignored")
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("E005", "bad query", nil)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E005", resp.Error.Code)
	assert.Equal(t, "bad query", resp.Error.Message)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	require.NoError(t, formatter.Success(42, "forty-two"))
	assert.Equal(t, "forty-two\n", buf.String())

	buf.Reset()
	require.NoError(t, formatter.Success(42, ""))
	assert.Equal(t, "42\n", buf.String())
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Error("E003", "store unavailable", map[string]string{"store": "archive"})
	require.NoError(t, err)
	assert.Equal(t, "Error [E003]: store unavailable\n", buf.String())
}

func TestOutputFormatter_TextErrorVerboseDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	err := formatter.Error("E003", "store unavailable", "archive")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Details: archive")
}

func TestOutputFormatter_Fail(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		fallback string
		wantCode string
	}{
		{
			name:     "plain error uses fallback",
			err:      errors.New("boom"),
			fallback: ErrCodeStore,
			wantCode: ErrCodeStore,
		},
		{
			name:     "query shape error",
			err:      &router.QueryShapeError{Message: "mixed stores", Block: 1, Stores: []string{"a", "b"}},
			fallback: ErrCodeInvalidInput,
			wantCode: string(router.CodeInvalidRequestStructure),
		},
		{
			name:     "unknown store",
			err:      fmt.Errorf("split: %w", &router.UnknownStoreError{StoreID: "nope"}),
			fallback: ErrCodeInvalidInput,
			wantCode: string(router.CodeUnknownResource),
		},
		{
			name:     "config validation",
			err:      &config.ValidationError{Err: errors.New("no stores")},
			fallback: ErrCodeGeneric,
			wantCode: ErrCodeConfig,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "json", Writer: buf}

			err := formatter.Fail(ExitFailure, tt.fallback, "request failed", tt.err)
			assert.Equal(t, ExitFailure, GetExitCode(err))
			assert.ErrorIs(t, err, tt.err)

			var resp CLIResponse
			require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Contains(t, resp.Error.Message, "request failed")
		})
	}
}

func TestOutputFormatter_FailShapeDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	_ = formatter.Fail(ExitFailure, ErrCodeInvalidInput, "split query",
		&router.QueryShapeError{Message: "mixed stores", Block: 2, Stores: []string{"a", "b"}})

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, map[string]any{"block": float64(2), "stores": []any{"a", "b"}}, resp.Error.Details)
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	out := &bytes.Buffer{}
	diag := &bytes.Buffer{}

	quiet := &OutputFormatter{Writer: out, ErrWriter: diag}
	quiet.VerboseLog("hidden %d", 1)
	assert.Empty(t, diag.String())

	loud := &OutputFormatter{Writer: out, ErrWriter: diag, Verbose: true}
	loud.VerboseLog("shown %d", 2)
	assert.Equal(t, "shown 2\n", diag.String())
	assert.Empty(t, out.String(), "diagnostics stay off the output stream")
}

func TestExitError(t *testing.T) {
	inner := errors.New("connection refused")

	err := WrapExitError(ExitCommandError, "connect broker", inner)
	assert.Equal(t, "connect broker: connection refused", err.Error())
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	assert.Equal(t, "usage", NewExitError(ExitFailure, "usage").Error())
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
}
