// Package s3 is the object-store client used to fetch dataset files and to
// publish packaged artifacts. It wraps AWS SDK v2 with a small surface:
// streaming downloads, existence checks, and uploads that switch to
// concurrent multipart transfers for large archives.
//
// The public NSD bucket is readable without credentials:
//
//	client, err := s3.New(ctx,
//	    s3.WithRegion("us-east-2"),
//	    s3.WithAnonymousCredentials(),
//	)
//	if err != nil {
//	    return err
//	}
//
//	var buf bytes.Buffer
//	_, err = client.Download(ctx, "natural-scenes-dataset",
//	    "nsddata/experiments/nsd/nsd_stim_info_merged.csv", &buf)
//
// Errors are returned as *errors.Error values that carry the operation,
// bucket and key, and wrap one of the sentinels in the errors package when
// the failure can be classified.
package s3
