// Package services defines the error taxonomy and context helpers shared by
// every ripcord component.
package services
