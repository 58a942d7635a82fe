// Package common contains shared constants and sentinel errors used across
// biokeeper components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on inbound requests.
const AccessTokenHeaderName = "access_token"

// DeviceInfoWebUpload is recorded as template provenance for uploads that
// arrive through the HTTP or gRPC API.
const DeviceInfoWebUpload = "web_upload"
