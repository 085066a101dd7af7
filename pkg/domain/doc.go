/*
Package domain contains the core models of the coachflow engine.

It defines the sequence graph (MessageNode, RouteRule, DataActionSpec,
Sequence), the dynamically typed store values (Value and its variants) with
the coercion rules shared by every component, and the results the engine
hands back to hosts (TraversalResult). This package is kept pure and free of
I/O, following Hexagonal Architecture principles.

# Key Entities

  - MessageNode: a point in the graph (bot, user, image, choice, textInput, autoroute, dataAction).
  - Sequence: an immutable, indexed list of nodes loaded from one document.
  - RouteRule: an ordered, optionally conditional, exit of an autoroute node.
  - DataActionSpec: a typed mutation (set, increment, append, trigger, ...).
  - Value: the tagged union stored under "namespace.key" entries.
  - TraversalResult: the rendered messages plus "awaiting input" / "transition" flags.
*/
package domain
