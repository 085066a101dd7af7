/*
Package coachflow is a conversation flow engine for coaching and onboarding
chat experiences.

Conversations are authored as sequences: YAML or JSON documents holding a
graph of message nodes. Bot messages render and continue, choice and text
input nodes halt until the user answers, autoroutes pick a branch by
evaluating conditions against the user's key/value state, and data actions
mutate that state or emit events. Any node may hand over to another sequence.

# Usage

	engine, err := coachflow.New("./sequences",
		coachflow.WithEntry("onboarding", ""),
	)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	res, err := engine.Start(ctx, "user-123", "", "")
	if err != nil {
		log.Fatal(err)
	}
	for _, m := range res.Messages {
		fmt.Println(m.Text)
	}

	if res.AwaitingInput {
		res, err = engine.Respond(ctx, "user-123", res.AwaitingNodeID, domain.Response{Text: "Ana"})
	}

Each session keeps its state under its own prefix in the configured store, so
a session resumes where it stopped after a restart. Storage, sequence
loading, event delivery and locking are ports with adapters under
pkg/adapters (memory, file, loam, redis, sqlite, postgres, amqp), and the
engine is served over HTTP and MCP by the coachflow command.
*/
package coachflow
