// Package upload handles S3 object upload operations.
//
// Objects smaller than the configured part size go through a single
// PutObject call. Larger objects are split into parts read on demand from an
// io.ReaderAt and uploaded concurrently, so a packaged archive never has to fit
// in memory.
package upload
