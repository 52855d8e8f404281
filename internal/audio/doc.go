// Package audio handles ingestion of uploaded audio blobs: bounded temp-file
// staging, transcoding to the recognizer's required format, and scoped
// cleanup of everything written along the way. It also probes durations of
// synthesized audio containers.
package audio
