// Package mqtt connects the Somfy event bridge to the Gray Logic MQTT bus.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing gateway events, device state and command acknowledgements
//   - Subscribing to command topics, restored after every reconnect
//   - Last Will and Testament (LWT) so consumers see the bridge go offline
//
// # Topics
//
// All topics follow the flat scheme graylogic/{category}/somfy/{id}:
//
//	graylogic/event/somfy/DeviceStateChangedEvent
//	graylogic/state/somfy/io%3A%2F%2F1234-5678-9012%2F4218932
//	graylogic/command/somfy/{target}
//	graylogic/ack/somfy/{request_id}
//	graylogic/health/somfy
//
// Device URLs contain '/' and so are escaped into a single topic level.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        return handle(topic, payload)
//	    })
package mqtt
