// Package thumbnail defines thumbnail size classes and records, and
// generates thumbnails from image, video and other source files.
package thumbnail
