// Package references finds usages of components the dependency data source does
// not report natively.
//
// The registry is a closed set: standard fields, custom fields, email templates,
// flows, Apex classes and objects. Lookup dispatches statically on the component
// kind; each resolver searches correlated metadata (rule formulas, code bodies,
// layouts, describes) and returns edges pointing back at the target.
//
// Resolvers never mutate their input and share lookups through the session cache
// carried by Env.
package references
