package storage

import "context"

// ObjectStorage captures the two operations the transfer agent needs.
type ObjectStorage interface {
	// DownloadObject writes the object named by oid to destPath.
	DownloadObject(ctx context.Context, oid string, destPath string) error
	// UploadObject sends the file at srcPath as oid and returns the number of
	// bytes of the local file.
	UploadObject(ctx context.Context, oid string, srcPath string) (int64, error)
}

// objectName joins the configured prefix and oid.
func objectName(prefix, oid string) string {
	if prefix == "" {
		return oid
	}
	return prefix + "/" + oid
}
