// Package transcription implements the HTTP client delivering validated
// speech segments downstream. It sends multipart form data with the segment
// audio and metadata, retries with exponential backoff, and rate-limits
// concurrent requests.
package transcription
