/* Copyright 2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Comcast/oscroute/osc"
	"github.com/Comcast/oscroute/sio"
	"github.com/Comcast/oscroute/util"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTCouplings is an sio.Couplings for an MQTT client.
//
// Payloads are binary OSC packets.  A payload that doesn't decode as
// OSC is parsed as text (see sio.ParsePacket).
type MQTTCouplings struct {
	Client  mqtt.Client
	Quiesce uint

	// SubTopics is a comma-separated list of TOPIC or TOPIC:QOS.
	SubTopics string

	// DefaultOutboundTopic gets emitted packets when there's no
	// OutTopicPrefix or the packet is a bundle.
	DefaultOutboundTopic string

	// OutTopicPrefix, if not empty, maps an emitted message's
	// address to the topic prefix + address (without the leading
	// '/').
	OutTopicPrefix string

	// DeliveriesTopic, if not empty, gets each Result's
	// deliveries as JSON.
	DeliveriesTopic string

	InTimeout time.Duration

	incoming chan osc.Packet
	outbound chan *sio.Result
	done     chan bool
}

func NewMQTTCouplings(args []string) (*MQTTCouplings, *flag.FlagSet) {
	var (
		// Follow mosquitto_sub command line args.

		fs = flag.NewFlagSet("mq", flag.ExitOnError)

		broker      = fs.String("h", "tcp://localhost", "Broker hostname")
		clientId    = fs.String("i", "", "Client id")
		port        = fs.Int("p", 1883, "Broker port")
		keepAlive   = fs.Int("k", 10, "Keep-alive in seconds")
		userName    = fs.String("u", "", "Username")
		password    = fs.String("P", "", "Password")
		willTopic   = fs.String("will-topic", "", "Optional will topic")
		willPayload = fs.String("will-payload", "", "Optional will message")
		willQoS     = fs.Int("will-qos", 0, "Optional will QoS")
		willRetain  = fs.Bool("will-retain", false, "Optional will retention")
		reconnect   = fs.Bool("reconnect", false, "Automatically attempt to reconnect")
		clean       = fs.Bool("c", true, "Clean session")
		quiesce     = fs.Int("quiesce", 100, "Disconnection quiescence (in milliseconds)")

		certFilename = fs.String("cert", "", "Optional cert filename")
		keyFilename  = fs.String("key", "", "Optional key filename")
		insecure     = fs.Bool("insecure", false, "Skip broker cert checking")
		caFilename   = fs.String("cafile", "", "Optional CA cert filename")
		caPath       = fs.String("capath", "", "Optional path to CA cert filename")

		subTopics = fs.String("t", "osc/in", "subscription topic(s)")

		defaultOutboundTopic = fs.String("def-outbound-topic", "osc/out", "Default out-bound topic")
		outTopicPrefix       = fs.String("out-topic-prefix", "", "Optional prefix for topics derived from emitted addresses")
		deliveriesTopic      = fs.String("deliveries-topic", "", "Optional topic for deliveries (JSON)")
		inTimeout            = fs.Duration("in-timeout", time.Second, "timeout for in-bound queuing")
	)

	if args == nil {
		return nil, fs
	}

	fs.Parse(args)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mqtt.ERROR = log.New(os.Stderr, "mqtt.error", 0)

	opts := mqtt.NewClientOptions()

	*broker = fmt.Sprintf("%s:%d", *broker, *port)
	opts.AddBroker(*broker)
	opts.SetClientID(*clientId)
	opts.SetKeepAlive(time.Second * time.Duration(*keepAlive))

	opts.Username = *userName
	opts.Password = *password
	opts.AutoReconnect = *reconnect
	opts.CleanSession = *clean

	if *willTopic != "" {
		if *willPayload == "" {
			log.Fatal("will topic without payload")
		}
		opts.WillEnabled = true
		opts.WillTopic = *willTopic
		opts.WillPayload = []byte(*willPayload)
		opts.WillRetained = *willRetain
		opts.WillQos = byte(*willQoS)
	}

	var rootCAs *x509.CertPool
	if *caFilename != "" {
		if rootCAs, _ = x509.SystemCertPool(); rootCAs == nil {
			rootCAs = x509.NewCertPool()
			log.Printf("Including system CA certs")
		}

		filename := filepath.Join(*caPath, *caFilename)
		certs, err := ioutil.ReadFile(filename)
		if err != nil {
			log.Fatalf("couldn't read '%s': %s", filename, err)
		}

		if ok := rootCAs.AppendCertsFromPEM(certs); !ok {
			log.Println("No certs appended, using system certs only")
		}
	}

	var certs []tls.Certificate
	if *keyFilename != "" {
		cert, err := tls.LoadX509KeyPair(*certFilename, *keyFilename)
		if err != nil {
			log.Fatal(err)
		}
		certs = []tls.Certificate{cert}
	}

	tlsConf := &tls.Config{
		InsecureSkipVerify: *insecure,
	}

	if rootCAs != nil {
		tlsConf.RootCAs = rootCAs
	}

	if certs != nil {
		tlsConf.Certificates = certs
	}

	opts.SetTLSConfig(tlsConf)

	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		log.Printf("MQTT connection lost")
	}

	io := &MQTTCouplings{
		Quiesce:              uint(*quiesce),
		SubTopics:            *subTopics,
		DefaultOutboundTopic: *defaultOutboundTopic,
		OutTopicPrefix:       *outTopicPrefix,
		DeliveriesTopic:      *deliveriesTopic,
		InTimeout:            *inTimeout,

		incoming: make(chan osc.Packet),
		outbound: make(chan *sio.Result),
		done:     make(chan bool),
	}

	opts.DefaultPublishHandler = func(client mqtt.Client, msg mqtt.Message) {
		io.inHandler(ctx, msg)
	}

	io.Client = mqtt.NewClient(opts)

	return io, fs
}

// inHandler is a Paho publish handler, which is used to handle
// messages send to us from the MQTT broker due to our subscriptions.
func (c *MQTTCouplings) inHandler(ctx context.Context, msg mqtt.Message) {
	util.Logf("incoming: %s (%d bytes)", msg.Topic(), len(msg.Payload()))

	p, err := decodePayload(msg.Payload())
	if err != nil {
		util.Warnf("topic %s: %s", msg.Topic(), err)
		return
	}

	to := time.NewTimer(c.InTimeout)
	defer to.Stop()

	select {
	case <-ctx.Done():
		log.Printf("Publisher not publishing due to ctx.Done()")
	case c.incoming <- p:
	case <-to.C:
		log.Printf("Publisher not publishing due to stall")
	}
}

// decodePayload tries OSC first and then text.
func decodePayload(bs []byte) (osc.Packet, error) {
	if p, err := osc.Decode(bs); err == nil {
		return p, nil
	}
	return sio.ParsePacket(bs)
}

// Start creates the MQTT session.
func (c *MQTTCouplings) Start(ctx context.Context) error {
	log.Printf("Attempting to connect to broker")
	if token := c.Client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("Connected to broker")

	for _, topic := range strings.Split(c.SubTopics, ",") {
		topic, qos := parseTopic(topic)
		if topic == "" {
			continue
		}
		log.Printf("Subscribing to %s (%d)", topic, qos)
		if t := c.Client.Subscribe(topic, qos, nil); t.Wait() && t.Error() != nil {
			return t.Error()
		}
	}

	go c.outLoop(ctx)

	log.Printf("Couplings started")

	return nil
}

// IO returns the channels that the constructor made.
func (c *MQTTCouplings) IO(ctx context.Context) (chan osc.Packet, chan *sio.Result, chan bool, error) {
	return c.incoming, c.outbound, c.done, nil
}

// outLoop publishes Results.
func (c *MQTTCouplings) outLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-c.outbound:
			for _, p := range r.Emitted {
				bs, err := osc.Encode(p)
				if err != nil {
					util.Warnf("encoding %s: %s", sio.PacketJS(p), err)
					continue
				}
				topic, qos := parseTopic(outTopic(c.DefaultOutboundTopic, c.OutTopicPrefix, p))
				c.publish(topic, qos, bs)
			}
			if c.DeliveriesTopic != "" && 0 < len(r.Deliveries) {
				js, err := json.Marshal(r.Deliveries)
				if err != nil {
					util.Warnf("marshaling deliveries: %s", err)
					continue
				}
				topic, qos := parseTopic(c.DeliveriesTopic)
				c.publish(topic, qos, js)
			}
			if r.Err != "" {
				log.Printf("ERROR %s", r.Err)
			}
		}
	}
}

func (c *MQTTCouplings) publish(topic string, qos byte, payload []byte) {
	util.Logf("publishing %d bytes to %s", len(payload), topic)
	token := c.Client.Publish(topic, qos, false, payload)
	token.Wait()
	if token.Error() != nil {
		util.Warnf("publish to %s: %s", topic, token.Error())
	}
}

// Stop terminates the MQTT session.
func (c *MQTTCouplings) Stop(ctx context.Context) error {
	log.Printf("Disconnecting")
	c.Client.Disconnect(c.Quiesce)
	close(c.done)
	return nil
}

// outTopic picks the topic for an emitted packet.
func outTopic(def, prefix string, p osc.Packet) string {
	if prefix == "" {
		return def
	}
	m, is := p.(*osc.Message)
	if !is {
		return def
	}
	return prefix + strings.TrimPrefix(m.Address, "/")
}

// parseTopic can extract QoS from a topic name of the form TOPIC:QOS.
func parseTopic(s string) (string, byte) {
	s = strings.TrimSpace(s)
	i := strings.LastIndex(s, ":")
	if i < 0 {
		return s, 0
	}
	n, err := strconv.Atoi(s[i+1:])
	if err != nil || n < 0 || 2 < n {
		return s, 0
	}
	return s[:i], byte(n)
}
