package mosquitto

import (
	"encoding/json"
	"fmt"
	"log/slog"
)

// StationMsg is one reading published by a station. RSSI is a pointer so a
// missing field is not read as 0 dBm.
type StationMsg struct {
	Station string   `json:"station"`
	RSSI    *float64 `json:"rssi"`
}

// Recorder stores a reading; *ingest.Ingestor implements it.
type Recorder interface {
	Record(station string, rssi float64, source string) (float64, error)
}

type MqttMsgHandler struct {
	recorder Recorder
	log      *slog.Logger
}

func NewHandler(recorder Recorder, log *slog.Logger) *MqttMsgHandler {
	return &MqttMsgHandler{recorder: recorder, log: log}
}

func (h *MqttMsgHandler) HandleMsg(msg []byte) error {
	var stationMsg StationMsg
	if err := json.Unmarshal(msg, &stationMsg); err != nil {
		h.log.Error("failed to parse MQTT message", "err", err)
		return err
	}
	if stationMsg.Station == "" {
		return fmt.Errorf("message without station")
	}
	if stationMsg.RSSI == nil {
		return fmt.Errorf("message from %s without rssi", stationMsg.Station)
	}

	if _, err := h.recorder.Record(stationMsg.Station, *stationMsg.RSSI, "mqtt"); err != nil {
		return err
	}
	return nil
}
