/*
Package dsl provides a Go DSL for building coaching sequences in code.

It is the programmatic twin of the YAML/JSON sequence documents: a fluent
builder that produces a *domain.Sequence, handy for tests, generated flows and
IDE autocompletion.

Example usage:

	b := dsl.New("checkin")

	b.Bot("hello").
		Text("Morning! ||| Quick check-in").
		Next("mood")

	b.Choice("mood").
		Text("How do you feel?").
		StoreKey("user.mood").
		Option("Great", "great", "count").
		Option("Tired", "tired", "rest")

	b.Action("count").
		Increment("user.checkins", nil).
		Next("bye")

	b.Bot("bye").Text("See you tomorrow, {user.name|friend}!")
	b.Bot("rest").Text("Take it easy today.")

	loader, err := dsl.Loader(b)
	// ... pass loader to coachflow.New("", coachflow.WithLoader(loader))
*/
package dsl
