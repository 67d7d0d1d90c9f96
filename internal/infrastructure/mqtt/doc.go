// Package mqtt is the daemon's optional event bus.
//
// Job state transitions, pipeline stage changes, ComfyUI render
// progress and bridge results are published to a broker so that editor
// watchers, dashboards and render farms can follow long-running work
// without polling the HTTP API. The package wraps paho with
// auto-reconnect, subscription restore, a Last Will and Testament for
// offline detection, and a small topic schema (see Topics).
//
// Connect dials the broker and returns a Client:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllJobStates(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("%s = %s", topic, payload)
//	        return nil
//	    })
//
//	client.Publish(mqtt.Topics{}.JobState(job.ID),
//	    []byte(`{"status":"running"}`), 1, false)
//
// TLS is available for non-local brokers via cfg.Broker.TLS; payloads
// themselves are plain JSON.
package mqtt
