// Package influxdb is the daemon's time-series metrics sink.
//
// It records job durations, file-drop bridge queue depth, ComfyUI
// render progress and video analysis stage timings through the
// official influxdb-client-go v2 SDK. Writes are batched and
// non-blocking, so pipeline code can emit points without caring
// whether the sink is slow or briefly down; batch failures reach the
// caller only through the SetOnError callback.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteJobDuration("render", "render_scene", "done", 94*time.Second)
//
// All methods are safe for concurrent use.
package influxdb
