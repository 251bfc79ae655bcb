// Package restapi is an optional bucket-statistics source that queries a
// zone's admin REST API instead of running the admin tool with a zone
// override. Requests are signed with AWS Signature Version 4.
package restapi
