package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/glacier-telemetry/internal/domain"
)

var stationCmd = &cobra.Command{
	Use:   "station",
	Short: "Manage monitoring stations",
}

var stationAddCmd = &cobra.Command{
	Use:   "add CODE",
	Short: "Register or update a station",
	Args:  cobra.ExactArgs(1),
	RunE:  runStationAdd,
}

var stationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered stations",
	RunE:  runStationList,
}

func init() {
	rootCmd.AddCommand(stationCmd)
	stationCmd.AddCommand(stationAddCmd)
	stationCmd.AddCommand(stationListCmd)

	f := stationAddCmd.Flags()
	f.Bool("inactive", false, "mark the station as not operational")
	f.String("upload-path", "", "where the station's files are uploaded")
	f.Bool("single-file", false, "station uploads one aggregate file with a header row")
	f.Float64("utc-offset", 0, "station UTC offset in hours")
	f.Float64("init-height", 0, "initial sensor height in cm")
	f.StringSlice("capability", nil, "optional capabilities (elevation)")
}

func runStationAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := loadEnv()
	if err != nil {
		return err
	}
	store, closeStore, err := e.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	st, err := stationFromFlags(cmd, args[0])
	if err != nil {
		return err
	}
	if err := store.SaveStation(ctx, st); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "station %s saved\n", st.Code)
	return nil
}

func stationFromFlags(cmd *cobra.Command, code string) (domain.Station, error) {
	f := cmd.Flags()
	inactive, _ := f.GetBool("inactive")
	uploadPath, _ := f.GetString("upload-path")
	singleFile, _ := f.GetBool("single-file")
	offset, _ := f.GetFloat64("utc-offset")
	height, _ := f.GetFloat64("init-height")
	caps, _ := f.GetStringSlice("capability")

	st := domain.Station{
		Code:            domain.NormalizeStationCode(code),
		Operational:     !inactive,
		UploadPath:      uploadPath,
		SingleFile:      singleFile,
		UTCOffsetHours:  offset,
		InitialHeightCM: height,
	}
	if st.Code == "" {
		return domain.Station{}, fmt.Errorf("station code must not be blank")
	}
	if offset < -12 || offset > 14 {
		return domain.Station{}, fmt.Errorf("utc offset %g out of range", offset)
	}
	for _, c := range caps {
		c = strings.ToLower(strings.TrimSpace(c))
		if domain.Capability(c) != domain.CapabilityElevation {
			return domain.Station{}, fmt.Errorf("unknown capability %q", c)
		}
		st.Capabilities = append(st.Capabilities, domain.Capability(c))
	}
	return st, nil
}

func runStationList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	e, err := loadEnv()
	if err != nil {
		return err
	}
	store, closeStore, err := e.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	stations, err := store.Stations(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SITE\tOPERATIONAL\tSINGLE FILE\tUTC OFFSET\tCAPABILITIES")
	for _, st := range stations {
		caps := make([]string, len(st.Capabilities))
		for i, c := range st.Capabilities {
			caps[i] = string(c)
		}
		fmt.Fprintf(tw, "%s\t%t\t%t\t%+g\t%s\n", st.Code, st.Operational, st.SingleFile, st.UTCOffsetHours, strings.Join(caps, ","))
	}
	return tw.Flush()
}
