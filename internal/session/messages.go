package session

import "fmt"

const (
	messageNoTranscript = "No se generó minuta porque no se transcribió texto."

	messageStartFailedFormat         = "No se pudo iniciar la transcripción: %s"
	messageTranscriptionFailedFormat = "Error en la transcripción: %s"
	messageSummarizationFailedFormat = "Error con Gemini: %s"
)

const (
	stopReasonClient      = "client requested stop"
	stopReasonMaxDuration = "max session duration reached"
)

func startFailedMessage(err error) string {
	return fmt.Sprintf(messageStartFailedFormat, err.Error())
}

func transcriptionFailedMessage(err error) string {
	return fmt.Sprintf(messageTranscriptionFailedFormat, err.Error())
}

func summarizationFailedMessage(err error) string {
	return fmt.Sprintf(messageSummarizationFailedFormat, err.Error())
}
