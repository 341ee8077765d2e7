package mirror

import (
	"errors"
	"strings"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "valid minimal",
			cfg:     Config{Bucket: "outputs"},
			wantErr: false,
		},
		{
			name:    "missing bucket",
			cfg:     Config{},
			wantErr: true,
		},
		{
			name:    "access key without secret",
			cfg:     Config{Bucket: "outputs", AccessKeyID: "AKIA..."},
			wantErr: true,
		},
		{
			name:    "secret without access key",
			cfg:     Config{Bucket: "outputs", SecretAccessKey: "secret"},
			wantErr: true,
		},
		{
			name: "explicit credential pair",
			cfg: Config{
				Bucket:          "outputs",
				AccessKeyID:     "AKIA...",
				SecretAccessKey: "secret",
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestObjectKey(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		want   string
	}{
		{name: "no prefix", prefix: "", want: "jobs/abc123/output.mp4"},
		{name: "with prefix", prefix: "offload", want: "offload/jobs/abc123/output.mp4"},
		{name: "prefix slashes trimmed", prefix: "/offload/", want: "offload/jobs/abc123/output.mp4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Mirror{bucket: "outputs", prefix: trimPrefix(tt.prefix)}
			assert.Equal(t, tt.want, m.objectKey("abc123", "/data/jobs/abc123/output.mp4"))
		})
	}
}

// trimPrefix mirrors the normalization New applies to Config.Prefix.
func trimPrefix(p string) string {
	return strings.Trim(p, "/")
}

func TestWrapError_Classification(t *testing.T) {
	m := &Mirror{bucket: "outputs"}

	tests := []struct {
		name string
		code string
		want error
	}{
		{name: "bucket missing", code: "NoSuchBucket", want: ErrBucketNotFound},
		{name: "access denied", code: "AccessDenied", want: ErrAccessDenied},
		{name: "bad credentials", code: "InvalidAccessKeyId", want: ErrInvalidCredentials},
		{name: "throttled", code: "SlowDown", want: ErrThrottled},
		{name: "unavailable", code: "ServiceUnavailable", want: ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := &smithy.GenericAPIError{Code: tt.code, Message: tt.name}
			err := m.wrapError("ArchiveOutput", "jobs/x/output.mp4", apiErr)
			assert.ErrorIs(t, err, tt.want)

			var merr *MirrorError
			assert.True(t, errors.As(err, &merr))
			assert.Equal(t, "outputs", merr.Bucket)
		})
	}
}

func TestWrapError_UnknownCodePreservesCause(t *testing.T) {
	m := &Mirror{bucket: "outputs"}
	cause := errors.New("dial tcp: connection refused")
	err := m.wrapError("ArchiveOutput", "k", cause)
	assert.ErrorIs(t, err, cause)
}
