// Package branding stores tenant logos in S3 compatible object storage.
// The returned URL is saved in the tenant's settings as logo_url.
package branding
