package mqtt

import "fmt"

// maxPayloadSize caps published payloads at 1MB, in line with common
// broker limits. Workflow graphs stay on the HTTP API; only compact
// state documents travel over MQTT.
const maxPayloadSize = 1 << 20

// Publish sends a message and waits for broker acknowledgment.
//
// Retained messages are kept by the broker and delivered to new
// subscribers immediately; use them for status topics, not for
// progress streams.
//
// Parameters:
//   - topic: full topic, e.g. Topics{}.JobState(id)
//   - payload: message body, at most maxPayloadSize bytes
//   - qos: 0, 1 or 2
//   - retained: keep as the topic's last known value
//
// Returns:
//   - error: ErrInvalidTopic, ErrInvalidQoS, ErrNotConnected or a
//     wrapped ErrPublishFailed
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	switch {
	case topic == "":
		return ErrInvalidTopic
	case qos > maxQoS:
		return ErrInvalidQoS
	case len(payload) > maxPayloadSize:
		return fmt.Errorf("%w: %d bytes exceeds %d byte limit", ErrPublishFailed, len(payload), maxPayloadSize)
	case !c.IsConnected():
		return ErrNotConnected
	}

	token := c.paho.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: no ack within %v", ErrPublishFailed, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}
