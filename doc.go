/*
Package iaqflow is a stateful decision engine for indoor air quality (IAQ) monitoring.

It consumes timestamped sensor frames, classifies every reading against
configured bands, debounces the result into confirmed alerts and drives staged
corrective cycles (for example: open VAV dampers, then the fresh-air damper,
then notify facilities). Every observable transition is recorded as an
ordered event and each run ends with a per-channel summary.

# Concept

A run is a pure function of the configuration and the frame table. Channels are
independent: each owns a state machine (idle, cycle stage, cooldown) and a
persistence tracker, so they are evaluated in parallel and merged by timestamp.
Actions are recorded, never executed; the host decides what to do with them.

# Usage

	cfg, err := config.Load("iaqflow.yaml")
	if err != nil {
		log.Fatal(err)
	}
	eng, err := iaqflow.New(cfg,
		iaqflow.WithWriters(csv.NewWriter("out")),
	)
	if err != nil {
		log.Fatal(err)
	}

	f, err := csv.Open("sensors.csv", cfg.Columns)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	report, err := eng.Run(context.Background(), f)
	if err != nil {
		log.Fatal(err)
	}
	for _, s := range report.Summary {
		fmt.Println(s.Channel, s.AlertsRaised, s.CyclesCompleted)
	}
*/
package iaqflow
