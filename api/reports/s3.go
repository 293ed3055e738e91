package reports

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const (
	stmtDefaultBucket  = "finreports"
	stmtPrefix         = "statements/"
	stmtDefaultRegion  = "us-east-1"
	stmtDefaultBaseURL = "https://finreports.s3.us-east-1.amazonaws.com/"
)

func stmtBucket() string {
	if b := strings.TrimSpace(os.Getenv("FINREPORTS_S3_BUCKET")); b != "" {
		return b
	}
	return stmtDefaultBucket
}

func stmtRegion() string {
	if r := strings.TrimSpace(os.Getenv("FINREPORTS_S3_REGION")); r != "" {
		return r
	}
	return stmtDefaultRegion
}

func stmtBaseURL() string {
	if u := strings.TrimSpace(os.Getenv("FINREPORTS_S3_BASE_URL")); u != "" {
		u = strings.TrimSuffix(u, "/")
		return u + "/"
	}
	return stmtDefaultBaseURL
}

// isS3Enabled reads FINREPORTS_S3_ENABLED to decide whether confirmed
// statement files are archived. Defaults to true when unset.
func isS3Enabled() bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv("FINREPORTS_S3_ENABLED")))
	if v == "" {
		return true
	}
	return v == "1" || v == "true" || v == "yes"
}

func sanitizePathSegment(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "_", "\\", "_")
	return replacer.Replace(s)
}

func buildStatementS3Key(companyID, statementID, fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == "" {
		ext = ".bin"
	}
	return fmt.Sprintf("%s%s/%s%s", stmtPrefix, sanitizePathSegment(companyID), statementID, ext)
}

func detectContentType(data []byte) string {
	if len(data) == 0 {
		return "application/octet-stream"
	}
	if len(data) > 512 {
		return http.DetectContentType(data[:512])
	}
	return http.DetectContentType(data)
}

// uploadOriginalToS3 archives the confirmed statement file. Archiving is
// best-effort: callers log failures and keep going, since the parsed data is
// already in hand.
func uploadOriginalToS3(ctx context.Context, companyID, statementID, fileName string, body []byte) (string, error) {
	if !isS3Enabled() {
		return "", nil
	}
	key := buildStatementS3Key(companyID, statementID, fileName)
	bucket := stmtBucket()
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(stmtRegion()))
	if err != nil {
		return "", fmt.Errorf("load AWS config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(detectContentType(body)),
	})
	if err != nil {
		return "", fmt.Errorf("upload to s3 (bucket %s, key %s): %w", bucket, key, err)
	}
	return stmtBaseURL() + key, nil
}
