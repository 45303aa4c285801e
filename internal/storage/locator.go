package storage

import (
	"net/url"
	"strings"
)

// DefaultBaseURL is the public Cloud Storage endpoint.
const DefaultBaseURL = "https://storage.googleapis.com"

// ObjectLocator produces the three URL forms of one object.
type ObjectLocator struct {
	base   string
	bucket string
	name   string
}

func NewObjectLocator(baseURL, bucket, name string) ObjectLocator {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return ObjectLocator{
		base:   strings.TrimSuffix(baseURL, "/"),
		bucket: bucket,
		name:   name,
	}
}

func (l ObjectLocator) Bucket() string { return l.bucket }

func (l ObjectLocator) Name() string { return l.name }

// PublicURL is the unauthenticated XML API download URL.
func (l ObjectLocator) PublicURL() string {
	return l.base + "/" + url.PathEscape(l.bucket) + "/" + url.PathEscape(l.name)
}

// PrivateURL is the JSON API media download URL.
func (l ObjectLocator) PrivateURL() string {
	return l.base + "/storage/v1/b/" + url.PathEscape(l.bucket) +
		"/o/" + url.PathEscape(l.name) + "?alt=media"
}

// UploadURL is the JSON API simple upload URL.
func (l ObjectLocator) UploadURL() string {
	return l.base + "/upload/storage/v1/b/" + url.PathEscape(l.bucket) +
		"/o?uploadType=media&name=" + url.QueryEscape(l.name)
}
