// Command mediaspool manages the media persistence engine: the upload queue,
// blob storage, upload history, and the tiered catalog.
package main
