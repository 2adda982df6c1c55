// Package listing provides source tree listings for the export orchestrator:
// a filesystem walk (FSLister) and an object storage listing (S3Lister).
package listing
