/*
Command kbpost post-processes the trajectory candidates of a shift and stack
moving object search.

Contents

  Program overview
  Command line usage
  Configuration
  Algorithm outline


Program overview

A shift and stack search over a time ordered stack of images reports many
candidate linear trajectories, each with a likelihood and a pair of per
epoch curves, psi and phi, the numerator and denominator of a matched
filter.  Most candidates are noise and many of the rest are the same object
found several times.  kbpost reduces them to a short list of distinct,
plausible objects.

Command line usage

  kbpost simulate [flags]    post-process a synthetic search
  kbpost config [flags]      validate and print the configuration

Global flags:

  -c, --config <file>        YAML configuration file
  --log-level <level>        logrus level, default info
  --log-format text|json
  --metrics-file <file>      write Prometheus text format counters

The simulate command generates true objects, duplicate detections of them
and noise candidates, runs the post-processing and prints a table of the
final results.  With --kinds the table shows what each result really is.

Configuration

Keys not given in the YAML file take default values.  "kbpost config" with
no file prints the defaults.  Unknown filter types, statistics, stamp
types, cluster types or cluster functions are fatal.

Algorithm outline

1.  Candidates are fetched from the search in chunks in descending order of
likelihood.  Streaming stops at the first candidate below lh_level.
Candidates at or above max_lh are skipped.

2.  Each candidate's curves are filtered for outlying epochs by one of
clipped sigmaG, clipped average or Kalman filtering.  Candidates with
fewer than three surviving epochs or a recomputed likelihood below
lh_level are dropped.

3.  A stamp is coadded along each surviving trajectory.  Stamps whose
central moments, peak position or peak fraction do not look like a
centered point source are rejected.

4.  Remaining trajectories are clustered by DBSCAN or OPTICS on normalized
position, or position and velocity.  The highest likelihood member of each
cluster is kept.

-------------
Public domain.
*/
package main
