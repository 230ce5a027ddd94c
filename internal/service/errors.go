package service

import "errors"

var ErrTranscriptionNotFound = errors.New("transcription not found")
